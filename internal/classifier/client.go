package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"google.golang.org/genai"

	"github.com/mmynk/cardscan/internal/metrics"
)

const DefaultModel = "gemini-2.0-flash"

const detectPrompt = `You are checking a live camera frame for a business card.
Answer with JSON only: {"card_present": boolean, "is_steady": boolean}.
card_present is true when a business card is clearly in frame.
is_steady is true only when the card text is sharp enough to read every line.`

const extractPrompt = `Extract the contact details printed on this business card.
Answer with JSON only, using empty strings for anything not printed:
{"first_name": "", "last_name": "", "job_title": "", "company": "", "email": "",
 "phone": "", "phone_normalized": "", "website": "", "address": "", "notes": "",
 "logo_box": [ymin, xmin, ymax, xmax], "card_box": [ymin, xmin, ymax, xmax]}
phone_normalized is the phone number without spaces or dashes.
Boxes use a 0-1000 coordinate space; omit a box you cannot locate.`

// Ensure Client implements Classifier
var _ Classifier = (*Client)(nil)

// Client calls a Gemini model through the genai SDK.
type Client struct {
	models     *genai.Models
	model      string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a Client for the Gemini API. An empty baseURL keeps the
// SDK's default endpoint.
func NewClient(ctx context.Context, baseURL, apiKey string, opts ...Option) (*Client, error) {
	c := &Client{model: DefaultModel}
	for _, opt := range opts {
		opt(c)
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  c.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier client: %w", err)
	}
	c.models = gc.Models
	return c, nil
}

// Classify asks whether a card is present and legible in a low-resolution frame.
func (c *Client) Classify(ctx context.Context, image []byte) (Detection, error) {
	start := time.Now()
	text, err := c.generate(ctx, detectPrompt, image)
	if err != nil {
		c.metrics.ObserveClassifier("detect", time.Since(start), err)
		return Detection{}, err
	}
	d, err := ParseDetection(text)
	c.metrics.ObserveClassifier("detect", time.Since(start), err)
	return d, err
}

// Extract reads contact fields from a full-resolution still.
func (c *Client) Extract(ctx context.Context, image []byte) (*ContactFields, error) {
	start := time.Now()
	text, err := c.generate(ctx, extractPrompt, image)
	if err != nil {
		c.metrics.ObserveClassifier("extract", time.Since(start), err)
		return nil, err
	}
	f, err := ParseContactFields(text)
	c.metrics.ObserveClassifier("extract", time.Since(start), err)
	return f, err
}

func (c *Client) generate(ctx context.Context, prompt string, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("image is empty")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, http.DetectContentType(image)),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", callError(err)
	}
	return candidateText(resp)
}

// callError sorts a failed call into ErrUnavailable (the model could not be
// reached or refused the call) or ErrMalformedResponse (it answered with
// something that is not a generateContent response).
func callError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, apiErr.Code, apiErr.Message)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
}
