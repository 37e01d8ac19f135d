package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"golang.org/x/image/draw"
)

const (
	// FrameQuality is the JPEG quality of low-resolution poll frames.
	FrameQuality = 60
	// StillQuality is the JPEG quality of the full-resolution capture.
	StillQuality = 92
)

var (
	// ErrCameraUnavailable means the camera could not be acquired. It ends the session.
	ErrCameraUnavailable = errors.New("camera unavailable")

	// ErrCameraPaused is returned by Frame and Still while the camera is released
	// for visibility.
	ErrCameraPaused = errors.New("camera paused")
)

// Camera is a live video source. Latest always returns the most recent frame.
type Camera interface {
	Open(ctx context.Context) error
	Latest(ctx context.Context) (image.Image, error)
	Close() error
}

// Sampler owns a single camera handle and turns its frames into encoded
// snapshots.
type Sampler struct {
	mu     sync.Mutex
	camera Camera
	open   bool
	paused bool
}

func NewSampler(camera Camera) *Sampler {
	return &Sampler{camera: camera}
}

// Start acquires the camera.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquire(ctx)
}

func (s *Sampler) acquire(ctx context.Context) error {
	if s.open {
		return nil
	}
	if err := s.camera.Open(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	s.open = true
	s.paused = false
	return nil
}

// Frame returns the latest frame scaled to half its linear size, JPEG encoded
// at FrameQuality.
func (s *Sampler) Frame(ctx context.Context) ([]byte, error) {
	img, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	w, h := max(b.Dx()/2, 1), max(b.Dy()/2, 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return encode(dst, FrameQuality)
}

// Still returns the latest frame at full resolution, JPEG encoded at
// StillQuality.
func (s *Sampler) Still(ctx context.Context) ([]byte, error) {
	img, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	return encode(img, StillQuality)
}

func (s *Sampler) latest(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return nil, ErrCameraPaused
	}
	if !s.open {
		return nil, ErrCameraUnavailable
	}
	img, err := s.camera.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return img, nil
}

// Pause releases the camera while the view is hidden.
func (s *Sampler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.paused = true
	s.open = false
	return s.camera.Close()
}

// Resume reacquires a paused camera.
func (s *Sampler) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return nil
	}
	return s.acquire(ctx)
}

// Paused reports whether the camera is released for visibility.
func (s *Sampler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Release closes the camera if it is open. Safe to call more than once.
func (s *Sampler) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	if !s.open {
		return nil
	}
	s.open = false
	return s.camera.Close()
}

func encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
