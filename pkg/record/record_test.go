package record

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGuardSingleCapture(t *testing.T) {
	mock := &MockRecorder{Audio: []byte("wav")}
	g := NewGuard(mock)
	ctx := context.Background()

	if err := g.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !g.Recording() {
		t.Fatal("not recording after Start")
	}

	if err := g.Start(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start err = %v, want ErrBusy", err)
	}
	if mock.Starts() != 1 {
		t.Errorf("inner recorder started %d times, want 1", mock.Starts())
	}

	audio, err := g.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if string(audio) != "wav" {
		t.Errorf("audio = %q", audio)
	}
	if g.Recording() {
		t.Error("still recording after Stop")
	}

	// The guard is free again.
	if err := g.Start(ctx); err != nil {
		t.Errorf("Start after Stop: %v", err)
	}
}

func TestGuardStopWithoutStart(t *testing.T) {
	g := NewGuard(&MockRecorder{})
	if _, err := g.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("err = %v, want ErrNotRecording", err)
	}
}

func TestGuardStartFailureLeavesGuardFree(t *testing.T) {
	mock := &MockRecorder{StartErr: errors.New("no microphone")}
	g := NewGuard(mock)
	ctx := context.Background()

	if err := g.Start(ctx); err == nil {
		t.Fatal("expected Start to fail")
	}
	if g.Recording() {
		t.Error("guard stuck recording after failed Start")
	}

	// A later capture with a working recorder must not see ErrBusy.
	mock.StartErr = nil
	if err := g.Start(ctx); err != nil {
		t.Errorf("Start after failure: %v", err)
	}
}

func TestCommandRecorderStopWithoutStart(t *testing.T) {
	r := NewCommandRecorder()
	if _, err := r.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("err = %v, want ErrNotRecording", err)
	}
}

func TestCommandRecorderCapture(t *testing.T) {
	// Use a command that writes predictable bytes and then blocks, the
	// shape of a live capture process.
	r := &CommandRecorder{
		Command: "sh",
		Args:    []string{"-c", "printf audio-bytes; sleep 10"},
	}
	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start err = %v, want ErrBusy", err)
	}

	// Give the shell time to emit its output before the kill.
	time.Sleep(200 * time.Millisecond)
	data, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Errorf("captured %q, want audio-bytes", data)
	}
}
