// Package capture decides, frame by frame, when a business card in front of
// the camera is legible and grabs a full-resolution still of it.
//
// A Session owns one camera through a Sampler. Its Run loop polls a detector
// on a fixed interval with at most one classification outstanding, applies
// results through Next, and finishes with a Capture once the card is steady
// or the user triggers a manual capture.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/cardscan/internal/classifier"
	"github.com/mmynk/cardscan/internal/metrics"
)

// DefaultPollInterval keeps detection calls within typical model rate limits.
const DefaultPollInterval = 1500 * time.Millisecond

var (
	// ErrCancelled is returned by Run when the session is cancelled before a capture.
	ErrCancelled = errors.New("capture cancelled")

	// ErrSessionClosed is returned by Run on a session that already ran.
	ErrSessionClosed = errors.New("capture session closed")
)

// Detector is the part of the image classifier the poller needs.
type Detector interface {
	Classify(ctx context.Context, image []byte) (classifier.Detection, error)
}

// Capture is what a finished session hands off.
type Capture struct {
	SessionID string

	// Frame is the last low-resolution frame sent for classification, if any.
	Frame      []byte
	Still      []byte
	Manual     bool
	CapturedAt time.Time

	// Set by the caller once extraction and the duplicate check have run.
	Partial   bool
	Duplicate bool
}

type Session struct {
	id       string
	sampler  *Sampler
	detector Detector
	interval time.Duration
	metrics  *metrics.Metrics

	mu      sync.Mutex
	state   State
	started bool

	visibility chan bool
	trigger    chan struct{}
	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
}

type Option func(*Session)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// NewSession creates a session over camera. Nothing is acquired until Run.
func NewSession(camera Camera, detector Detector, opts ...Option) *Session {
	s := &Session{
		id:         uuid.New().String(),
		sampler:    NewSampler(camera),
		detector:   detector,
		interval:   DefaultPollInterval,
		state:      StateIdle,
		visibility: make(chan bool, 1),
		trigger:    make(chan struct{}, 1),
		cancel:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetVisible reports a visibility change of the capture view. Hidden
// releases the camera, visible reacquires it.
func (s *Session) SetVisible(visible bool) {
	for {
		select {
		case s.visibility <- visible:
			return
		case <-s.done:
			return
		default:
		}
		// Only the newest visibility matters; drop a stale pending one.
		select {
		case <-s.visibility:
		default:
		}
	}
}

// Trigger requests a manual capture, bypassing detection.
func (s *Session) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Cancel ends the session. Run returns ErrCancelled if it has not captured yet.
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancel) })
}

type pollResult struct {
	detection classifier.Detection
	err       error
}

// Run acquires the camera and drives the session until a capture is handed
// off, the session is cancelled, or the camera fails. The camera is released
// on every return path. A session can be run once.
func (s *Session) Run(ctx context.Context) (*Capture, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.started = true
	s.mu.Unlock()

	defer close(s.done)
	defer func() {
		if err := s.sampler.Release(); err != nil {
			slog.Warn("Failed to release camera", "session_id", s.id, "error", err)
		}
	}()

	log := slog.With("session_id", s.id)

	if err := s.sampler.Start(ctx); err != nil {
		log.Error("Failed to acquire camera", "error", err)
		s.setState(StateClosed)
		return nil, err
	}
	log.Info("Capture session started", "interval", s.interval)

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Buffered so a result arriving after Run returns never blocks its sender.
	results := make(chan pollResult, 1)
	inFlight := false
	var lastFrame []byte

	for {
		select {
		case <-ctx.Done():
			s.setState(StateClosed)
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())

		case <-s.cancel:
			log.Info("Capture session cancelled", "state", s.State())
			s.setState(StateClosed)
			return nil, ErrCancelled

		case visible := <-s.visibility:
			if err := s.applyVisibility(ctx, visible); err != nil {
				log.Error("Failed to reacquire camera", "error", err)
				s.setState(StateClosed)
				return nil, err
			}

		case <-s.trigger:
			log.Info("Manual capture requested", "state", s.State())
			stopPolling()
			ticker.Stop()
			return s.capture(ctx, lastFrame, true)

		case <-ticker.C:
			if inFlight || s.sampler.Paused() || !s.State().Polling() {
				continue
			}
			frame, err := s.sampler.Frame(ctx)
			if err != nil {
				log.Warn("Failed to sample frame", "error", err)
				continue
			}
			lastFrame = frame
			inFlight = true
			go func() {
				d, err := s.detector.Classify(pollCtx, frame)
				results <- pollResult{detection: d, err: err}
			}()

		case r := <-results:
			inFlight = false
			if r.err != nil {
				log.Warn("Classification failed, keeping state", "state", s.State(), "error", r.err)
				continue
			}
			next := Next(s.State(), r.detection)
			s.setState(next)
			if next == StateSteady {
				stopPolling()
				ticker.Stop()
				return s.capture(ctx, lastFrame, false)
			}
		}
	}
}

func (s *Session) applyVisibility(ctx context.Context, visible bool) error {
	if visible {
		return s.sampler.Resume(ctx)
	}
	if err := s.sampler.Pause(); err != nil {
		slog.Warn("Failed to release camera on hide", "session_id", s.id, "error", err)
	}
	return nil
}

// capture grabs the full-resolution still and hands it off.
func (s *Session) capture(ctx context.Context, frame []byte, manual bool) (*Capture, error) {
	s.setState(StateCapturing)

	// A manual trigger may arrive while the view is hidden.
	if err := s.sampler.Resume(ctx); err != nil {
		s.setState(StateClosed)
		return nil, err
	}
	still, err := s.sampler.Still(ctx)
	if err != nil {
		s.setState(StateClosed)
		return nil, fmt.Errorf("failed to capture still: %w", err)
	}

	s.metrics.IncrementCapture(manual)
	s.setState(StateHandedOff)
	slog.Info("Card captured", "session_id", s.id, "manual", manual, "bytes", len(still))

	return &Capture{
		SessionID:  s.id,
		Frame:      frame,
		Still:      still,
		Manual:     manual,
		CapturedAt: time.Now(),
	}, nil
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev != next {
		slog.Debug("Capture state changed", "session_id", s.id, "from", prev, "to", next)
		s.metrics.IncrementTransition(next.String())
	}
}
