package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type seenRequest struct {
	mu       sync.Mutex
	path     string
	apiKey   string
	mimeType string
}

type sentRequest struct {
	Contents []struct {
		Parts []struct {
			Text       string `json:"text"`
			InlineData *struct {
				MimeType string `json:"mimeType"`
			} `json:"inlineData"`
		} `json:"parts"`
	} `json:"contents"`
}

// modelServer answers every generateContent call with status and body.
func modelServer(t *testing.T, status int, body string) (*httptest.Server, *seenRequest) {
	t.Helper()
	last := &seenRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
			t.Errorf("unexpected request shape: %+v", req)
		}
		last.mu.Lock()
		last.path = r.URL.Path
		last.apiKey = r.Header.Get("x-goog-api-key")
		if len(req.Contents) == 1 && len(req.Contents[0].Parts) == 2 && req.Contents[0].Parts[1].InlineData != nil {
			last.mimeType = req.Contents[0].Parts[1].InlineData.MimeType
		}
		last.mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, last
}

func newClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), baseURL, "secret", opts...)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func candidate(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]string{"text": text}},
				},
			},
		},
	})
	return string(b)
}

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func TestClient_Classify(t *testing.T) {
	srv, last := modelServer(t, http.StatusOK, candidate(`{"card_present": true, "is_steady": true}`))
	c := newClient(t, srv.URL, WithModel("test-model"))

	d, err := c.Classify(context.Background(), jpegBytes)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !d.CardPresent || !d.IsSteady {
		t.Errorf("Detection = %+v, want present and steady", d)
	}
	last.mu.Lock()
	defer last.mu.Unlock()
	if last.path != "/v1beta/models/test-model:generateContent" {
		t.Errorf("path = %s", last.path)
	}
	if last.apiKey != "secret" {
		t.Error("api key header not sent")
	}
	if last.mimeType != "image/jpeg" {
		t.Errorf("inline image mime type = %q, want image/jpeg", last.mimeType)
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newClient(t, srv.URL)
	srv.Close()

	_, err := c.Classify(context.Background(), jpegBytes)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := NewClient(context.Background(), "http://unused", ""); err == nil {
		t.Error("expected error without an API key")
	}
}

func TestClient_ClassifyErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"non JSON body", http.StatusOK, "<html>oops</html>", ErrMalformedResponse},
		{"no candidates", http.StatusOK, `{"candidates": []}`, ErrMalformedResponse},
		{"candidate not JSON", http.StatusOK, candidate("I see a card"), ErrMalformedResponse},
		{"missing is_steady", http.StatusOK, candidate(`{"card_present": true}`), ErrMalformedResponse},
		{"server error", http.StatusServiceUnavailable, `{}`, ErrUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := modelServer(t, tt.status, tt.body)
			_, err := newClient(t, srv.URL).Classify(context.Background(), jpegBytes)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_Extract(t *testing.T) {
	answer := "```json\n" + `{
		"first_name": "Ada", "last_name": "Lovelace", "job_title": "Analyst",
		"company": "Analytical Engines", "email": "ada@engines.io",
		"phone": "+44 20 7946-0018", "website": "engines.io", "address": "London",
		"notes": "", "logo_box": [10, 20, 110, 220], "card_box": [0, 0, 1200, 1000]
	}` + "\n```"
	srv, _ := modelServer(t, http.StatusOK, candidate(answer))

	f, err := newClient(t, srv.URL).Extract(context.Background(), jpegBytes)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if f.FirstName != "Ada" || f.Company != "Analytical Engines" {
		t.Errorf("unexpected fields: %+v", f)
	}
	if f.PhoneNormalized != "+442079460018" {
		t.Errorf("PhoneNormalized = %q", f.PhoneNormalized)
	}
	if f.LogoBox == nil || *f.LogoBox != (Box{10, 20, 110, 220}) {
		t.Errorf("LogoBox = %v", f.LogoBox)
	}
	if f.CardBox != nil {
		t.Errorf("out of range CardBox should be dropped, got %v", f.CardBox)
	}
}

func TestClient_ExtractMissingRequiredField(t *testing.T) {
	srv, _ := modelServer(t, http.StatusOK, candidate(`{"first_name": "Ada"}`))
	_, err := newClient(t, srv.URL).Extract(context.Background(), jpegBytes)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if !strings.Contains(err.Error(), "last_name") {
		t.Errorf("error should name the missing field: %v", err)
	}
}

func TestClient_EmptyImage(t *testing.T) {
	if _, err := newClient(t, "http://unused").Classify(context.Background(), nil); err == nil {
		t.Error("expected error for empty image")
	}
}

func TestParseDetection_AbsentCardIsNeverSteady(t *testing.T) {
	d, err := ParseDetection(`{"card_present": false, "is_steady": true}`)
	if err != nil {
		t.Fatalf("ParseDetection failed: %v", err)
	}
	if d.IsSteady {
		t.Error("absent card must not be steady")
	}
}

func TestContactFields_Partial(t *testing.T) {
	tests := []struct {
		name   string
		fields ContactFields
		want   bool
	}{
		{"full name", ContactFields{FirstName: "A", LastName: "B"}, false},
		{"email only", ContactFields{Email: "a@b.co"}, false},
		{"phone only", ContactFields{Phone: "555"}, false},
		{"first name only", ContactFields{FirstName: "A", Company: "Acme"}, true},
		{"nothing", ContactFields{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fields.Partial(); got != tt.want {
				t.Errorf("Partial() = %v, want %v", got, tt.want)
			}
		})
	}
}
