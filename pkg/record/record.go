// Package record captures microphone audio for transcription and voice
// cloning. At most one capture may be in flight across the whole
// process; Guard enforces that.
package record

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
)

// ErrBusy is returned when a capture is requested while another one is
// still in flight.
var ErrBusy = errors.New("record: capture already in progress")

// ErrNotRecording is returned by Stop when no capture is in flight.
var ErrNotRecording = errors.New("record: no capture in progress")

// Recorder captures microphone audio between Start and Stop.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() ([]byte, error)
}

// Guard wraps a Recorder and rejects overlapping captures. Navigation
// destination capture and custom voice capture share one Guard so they
// can never run at the same time.
type Guard struct {
	mu        sync.Mutex
	rec       Recorder
	recording bool
}

// NewGuard wraps rec with single-capture enforcement.
func NewGuard(rec Recorder) *Guard {
	return &Guard{rec: rec}
}

// Start begins a capture, or returns ErrBusy if one is in flight.
func (g *Guard) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.recording {
		return ErrBusy
	}
	if err := g.rec.Start(ctx); err != nil {
		return err
	}
	g.recording = true
	return nil
}

// Stop ends the capture and returns the recorded audio.
func (g *Guard) Stop() ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.recording {
		return nil, ErrNotRecording
	}
	g.recording = false
	return g.rec.Stop()
}

// Recording reports whether a capture is in flight.
func (g *Guard) Recording() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.recording
}

// CommandRecorder captures audio by running an external command that
// writes WAV to stdout, arecord by default.
type CommandRecorder struct {
	Command string
	Args    []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	out    *bytes.Buffer
	cancel context.CancelFunc
}

// NewCommandRecorder returns a recorder backed by arecord capturing
// 16 kHz mono WAV, the format the transcription endpoint expects.
func NewCommandRecorder() *CommandRecorder {
	return &CommandRecorder{
		Command: "arecord",
		Args:    []string{"-q", "-f", "S16_LE", "-c", "1", "-r", "16000", "-t", "wav"},
	}
}

// Start launches the capture process.
func (r *CommandRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return ErrBusy
	}
	cctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cctx, r.Command, r.Args...)
	out := &bytes.Buffer{}
	cmd.Stdout = out
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("record: start %s: %w", r.Command, err)
	}
	r.cmd = cmd
	r.out = out
	r.cancel = cancel
	return nil
}

// Stop terminates the capture process and returns what it wrote.
func (r *CommandRecorder) Stop() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return nil, ErrNotRecording
	}
	r.cancel()
	// The process exits on context cancellation; the error reflects the
	// kill signal and the captured bytes are still valid.
	_ = r.cmd.Wait()
	data := r.out.Bytes()
	r.cmd = nil
	r.out = nil
	r.cancel = nil
	return data, nil
}

// MockRecorder is a Recorder for testing.
type MockRecorder struct {
	Audio    []byte
	StartErr error
	StopErr  error

	mu     sync.Mutex
	starts int
	stops  int
}

func (m *MockRecorder) Start(ctx context.Context) error {
	m.mu.Lock()
	m.starts++
	m.mu.Unlock()
	return m.StartErr
}

func (m *MockRecorder) Stop() ([]byte, error) {
	m.mu.Lock()
	m.stops++
	m.mu.Unlock()
	if m.StopErr != nil {
		return nil, m.StopErr
	}
	return m.Audio, nil
}

// Starts returns how many times Start was called.
func (m *MockRecorder) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}
