// Package scanner runs the device side of a scan: it drives a capture
// session against the API's Detect procedure, extracts the captured still and
// saves the contact.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/cardscan/internal/capture"
	"github.com/mmynk/cardscan/internal/classifier"
	"github.com/mmynk/cardscan/internal/metrics"
	v1 "github.com/mmynk/cardscan/pkg/api/cardscanv1"
	"github.com/mmynk/cardscan/pkg/api/cardscanv1/cardscanv1connect"
)

var (
	// ErrLimitReached means the owner has used up the cycle's scans.
	ErrLimitReached = errors.New("scan limit reached")

	// ErrNothingExtracted means the still held no usable contact fields.
	ErrNothingExtracted = errors.New("no contact fields extracted")
)

// Control is a user action forwarded to the running session.
type Control int

const (
	ControlTrigger Control = iota
	ControlHide
	ControlShow
)

// Result describes one finished scan.
type Result struct {
	Capture *capture.Capture

	// Contact is the saved record, or the extracted one when it was held back
	// as a duplicate.
	Contact     *v1.Contact
	Saved       bool
	DuplicateOf *v1.Contact
	MatchRule   string

	QuotaWarning bool
	Used         int
	Limit        int
}

// detector adapts the Detect procedure to capture.Detector.
type detector struct {
	client cardscanv1connect.ScanServiceClient
}

func (d *detector) Classify(ctx context.Context, image []byte) (classifier.Detection, error) {
	resp, err := d.client.Detect(ctx, connect.NewRequest(&v1.DetectRequest{Image: image}))
	if err != nil {
		return classifier.Detection{}, fmt.Errorf("%w: %v", classifier.ErrUnavailable, err)
	}
	return classifier.Detection{CardPresent: resp.Msg.CardPresent, IsSteady: resp.Msg.IsSteady}, nil
}

// Scanner scans cards from one camera.
type Scanner struct {
	client          cardscanv1connect.ScanServiceClient
	camera          capture.Camera
	interval        time.Duration
	allowDuplicates bool
	metrics         *metrics.Metrics
}

type Option func(*Scanner)

func WithPollInterval(d time.Duration) Option {
	return func(s *Scanner) {
		s.interval = d
	}
}

// WithAllowDuplicates saves contacts even when they match an existing record.
func WithAllowDuplicates(allow bool) Option {
	return func(s *Scanner) {
		s.allowDuplicates = allow
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scanner) {
		s.metrics = m
	}
}

func New(client cardscanv1connect.ScanServiceClient, camera capture.Camera, opts ...Option) *Scanner {
	s := &Scanner{
		client:   client,
		camera:   camera,
		interval: capture.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanOnce checks the quota, runs one capture session and saves the result.
func (s *Scanner) ScanOnce(ctx context.Context, controls <-chan Control) (*Result, error) {
	quota, err := s.client.CheckQuota(ctx, connect.NewRequest(&v1.CheckQuotaRequest{}))
	if err != nil {
		return nil, fmt.Errorf("failed to check quota: %w", err)
	}
	if !quota.Msg.Allowed {
		return nil, ErrLimitReached
	}

	session := capture.NewSession(s.camera, &detector{client: s.client},
		capture.WithPollInterval(s.interval),
		capture.WithMetrics(s.metrics),
	)
	done := make(chan struct{})
	go forward(controls, session, done)
	c, err := session.Run(ctx)
	close(done)
	if err != nil {
		return nil, err
	}

	extracted, err := s.client.Extract(ctx, connect.NewRequest(&v1.ExtractRequest{Image: c.Still}))
	if err != nil {
		return nil, fmt.Errorf("failed to extract contact: %w", err)
	}
	c.Partial = extracted.Msg.Partial
	res := &Result{Capture: c, Contact: extracted.Msg.Contact}
	if isBlank(extracted.Msg.Contact) {
		return res, ErrNothingExtracted
	}
	if c.Partial {
		slog.Warn("Partial capture, saving what was read", "session_id", c.SessionID)
	}

	saved, err := s.client.SaveScan(ctx, connect.NewRequest(&v1.SaveScanRequest{
		Contact:        extracted.Msg.Contact,
		AllowDuplicate: s.allowDuplicates,
	}))
	if connect.CodeOf(err) == connect.CodeResourceExhausted {
		return res, ErrLimitReached
	}
	if err != nil {
		return res, fmt.Errorf("failed to save scan: %w", err)
	}

	c.Duplicate = saved.Msg.Duplicate
	res.DuplicateOf = saved.Msg.DuplicateOf
	res.MatchRule = saved.Msg.MatchRule
	if saved.Msg.Contact != nil {
		res.Contact = saved.Msg.Contact
		res.Saved = true
	}
	res.QuotaWarning = saved.Msg.QuotaWarning
	res.Used = saved.Msg.Used
	res.Limit = saved.Msg.Limit
	return res, nil
}

// Run scans cards until ctx is done or the quota runs out, passing every
// result to handle. Failures of a single scan are logged and the next scan
// starts; an unavailable camera stops the loop.
func (s *Scanner) Run(ctx context.Context, controls <-chan Control, handle func(*Result)) error {
	for {
		res, err := s.ScanOnce(ctx, controls)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrLimitReached), errors.Is(err, capture.ErrCameraUnavailable):
			return err
		case errors.Is(err, capture.ErrCancelled):
			return nil
		case err != nil:
			slog.Warn("Scan failed, starting over", "error", err)
			if !sleep(ctx, s.interval) {
				return nil
			}
			continue
		}
		handle(res)
	}
}

// forward relays controls to session until done is closed.
func forward(controls <-chan Control, session *capture.Session, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case c, ok := <-controls:
			if !ok {
				controls = nil
				continue
			}
			switch c {
			case ControlTrigger:
				session.Trigger()
			case ControlHide:
				session.SetVisible(false)
			case ControlShow:
				session.SetVisible(true)
			}
		}
	}
}

func isBlank(c *v1.Contact) bool {
	return c == nil || (c.FirstName == "" && c.LastName == "" && c.Company == "" && c.Email == "" && c.Phone == "")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
