// Package camera provides camera frame ingest for the detection
// pipeline. Sources hand out the most recent JPEG frame; the pipeline
// polls at its own cadence and never blocks on capture.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"sync"

	"github.com/sightpath/go-sightpath/pkg/detect"
)

// ErrNoFrame is returned when no frame has been captured yet.
var ErrNoFrame = errors.New("camera: no frame available")

// Source hands out the most recently captured frame.
type Source interface {
	Frame(ctx context.Context) (detect.Frame, error)
	Close() error
}

// frameFromJPEG builds a Frame, reading dimensions from the JPEG
// header.
func frameFromJPEG(data []byte) (detect.Frame, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return detect.Frame{}, fmt.Errorf("camera: decode JPEG header: %w", err)
	}
	return detect.Frame{JPEG: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// Static is a Source pinned to one frame. Useful for tests and for
// exercising the pipeline without hardware.
type Static struct {
	mu    sync.Mutex
	frame detect.Frame
	set   bool
}

// NewStatic returns a Static source. SetJPEG must be called before the
// first Frame.
func NewStatic() *Static { return &Static{} }

// SetJPEG replaces the served frame.
func (s *Static) SetJPEG(data []byte) error {
	f, err := frameFromJPEG(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.frame = f
	s.set = true
	s.mu.Unlock()
	return nil
}

// SetFrame replaces the served frame without parsing the JPEG header.
func (s *Static) SetFrame(f detect.Frame) {
	s.mu.Lock()
	s.frame = f
	s.set = true
	s.mu.Unlock()
}

func (s *Static) Frame(ctx context.Context) (detect.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return detect.Frame{}, ErrNoFrame
	}
	return s.frame, nil
}

func (s *Static) Close() error { return nil }
