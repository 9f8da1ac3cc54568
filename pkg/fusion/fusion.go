// Package fusion runs the local and remote detectors according to the
// configured policy and merges their results into one per-tick detection set.
//
// Source failures are contained here: a detector error or empty result is
// never surfaced to the caller as an error, only as a fallback attempt or an
// empty result with a status string.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sightpath/go-sightpath/pkg/detect"
)

// Policy selects the detector trial order and merge behavior.
// Immutable for the lifetime of a session.
type Policy string

const (
	// PolicyLocalFirst tries the on-device detector, falling back to the
	// server on failure or an empty result.
	PolicyLocalFirst Policy = "local-first"

	// PolicyServerFirst tries the server, falling back to the on-device
	// detector.
	PolicyServerFirst Policy = "server-first"

	// PolicyParallel runs both detectors concurrently and merges their
	// results by exact label@bbox key.
	PolicyParallel Policy = "parallel"
)

// ParsePolicy validates a policy string.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyLocalFirst, PolicyServerFirst, PolicyParallel:
		return Policy(s), nil
	}
	return "", fmt.Errorf("fusion: unknown policy %q", s)
}

// Source identifies which detector(s) produced a tick's result.
type Source string

const (
	SourceLocal  Source = "local"
	SourceServer Source = "server"
	SourceMerged Source = "merged"
	SourceNone   Source = "none"
)

// Result is one tick's detection outcome. Detections are owned by the tick
// that created them and superseded, not merged, by the next tick.
type Result struct {
	Detections []detect.Detection
	Source     Source
	Status     string
}

// Engine fuses the two detection sources. It holds no per-tick state beyond
// what the detectors themselves keep.
type Engine struct {
	local  detect.Detector
	remote detect.Detector
	policy Policy
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger.With("component", "fusion") }
}

// New creates a fusion engine. Either detector may be nil; a nil detector
// behaves as a source that always returns an empty result.
func New(local, remote detect.Detector, policy Policy, opts ...Option) *Engine {
	e := &Engine{
		local:  local,
		remote: remote,
		policy: policy,
		logger: slog.Default().With("component", "fusion"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's configured policy.
func (e *Engine) Policy() Policy { return e.policy }

// Detect runs one tick. It always returns a result: failures collapse to an
// empty detection set with a failure status.
func (e *Engine) Detect(ctx context.Context, frame detect.Frame) Result {
	switch e.policy {
	case PolicyParallel:
		return e.detectParallel(ctx, frame)
	case PolicyLocalFirst:
		return e.detectOrdered(ctx, frame, e.runLocal, e.runServer, SourceLocal, SourceServer)
	default: // server-first
		return e.detectOrdered(ctx, frame, e.runServer, e.runLocal, SourceServer, SourceLocal)
	}
}

type sourceRun func(ctx context.Context, frame detect.Frame) []detect.Detection

// detectOrdered tries the primary source, then the fallback.
func (e *Engine) detectOrdered(ctx context.Context, frame detect.Frame, first, second sourceRun, firstSrc, secondSrc Source) Result {
	if dets := first(ctx, frame); len(dets) > 0 {
		return Result{
			Detections: dets,
			Source:     firstSrc,
			Status:     fmt.Sprintf("%s detect ok (%d)", firstSrc, len(dets)),
		}
	}
	if dets := second(ctx, frame); len(dets) > 0 {
		return Result{
			Detections: dets,
			Source:     secondSrc,
			Status:     fmt.Sprintf("%s detect ok (%d)", secondSrc, len(dets)),
		}
	}
	return Result{Source: SourceNone, Status: "detect failed"}
}

// detectParallel runs both sources concurrently and merges.
func (e *Engine) detectParallel(ctx context.Context, frame detect.Frame) Result {
	var serverDets, localDets []detect.Detection
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		serverDets = e.runServer(ctx, frame)
	}()
	go func() {
		defer wg.Done()
		localDets = e.runLocal(ctx, frame)
	}()
	wg.Wait()

	merged := merge(serverDets, localDets)
	return Result{
		Detections: merged,
		Source:     SourceMerged,
		Status:     fmt.Sprintf("merged detect (%d)", len(merged)),
	}
}

// merge deduplicates by exact label@bbox key, keeping first-insertion order
// and preferring the later-inserted source on a key collision.
func merge(groups ...[]detect.Detection) []detect.Detection {
	index := make(map[string]int)
	var out []detect.Detection
	for _, dets := range groups {
		for _, d := range dets {
			key := d.Key()
			if i, ok := index[key]; ok {
				out[i] = d
				continue
			}
			index[key] = len(out)
			out = append(out, d)
		}
	}
	return out
}

// runServer calls the remote detector, containing any failure.
func (e *Engine) runServer(ctx context.Context, frame detect.Frame) []detect.Detection {
	if e.remote == nil {
		return nil
	}
	dets, err := e.remote.Detect(ctx, frame)
	if err != nil {
		e.logger.Debug("server detect failed", "error", err)
		return nil
	}
	return dets
}

// runLocal calls the on-device detector and translates its class vocabulary
// to user-facing labels.
func (e *Engine) runLocal(ctx context.Context, frame detect.Frame) []detect.Detection {
	if e.local == nil {
		return nil
	}
	dets, err := e.local.Detect(ctx, frame)
	if err != nil {
		e.logger.Debug("local detect failed", "error", err)
		return nil
	}
	return detect.Translate(dets)
}
