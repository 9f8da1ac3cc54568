package nav

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sightpath/go-sightpath/internal/httpc"
)

// PositionSource provides the user's location. Current is a single-shot
// lookup; Watch delivers continuous fixes until the returned cancel
// function is called.
type PositionSource interface {
	Current(ctx context.Context) (Coordinate, error)
	Watch(ctx context.Context, fn func(Coordinate)) (cancel func(), err error)
}

// StaticPosition is a PositionSource pinned to one coordinate. Useful
// for testing and for devices without a live GPS fix.
type StaticPosition struct {
	Pos Coordinate
}

func (s StaticPosition) Current(ctx context.Context) (Coordinate, error) {
	return s.Pos, nil
}

func (s StaticPosition) Watch(ctx context.Context, fn func(Coordinate)) (func(), error) {
	fn(s.Pos)
	return func() {}, nil
}

// DefaultFixInterval is how often HTTPPosition polls for a new fix.
const DefaultFixInterval = 2 * time.Second

// HTTPPosition polls a companion device that exposes the user's location
// over HTTP as {"lat": ..., "lng": ...}.
type HTTPPosition struct {
	url      string
	client   *http.Client
	interval time.Duration
}

// NewHTTPPosition returns a PositionSource polling the given URL.
func NewHTTPPosition(url string, opts ...PositionOption) *HTTPPosition {
	p := &HTTPPosition{
		url:      url,
		client:   httpc.Client,
		interval: DefaultFixInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PositionOption customizes an HTTPPosition.
type PositionOption func(*HTTPPosition)

// WithFixInterval sets the polling interval for Watch.
func WithFixInterval(d time.Duration) PositionOption {
	return func(p *HTTPPosition) { p.interval = d }
}

// WithPositionClient overrides the HTTP client.
func WithPositionClient(hc *http.Client) PositionOption {
	return func(p *HTTPPosition) { p.client = hc }
}

func (p *HTTPPosition) Current(ctx context.Context) (Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Coordinate{}, fmt.Errorf("nav: create position request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Coordinate{}, fmt.Errorf("nav: position request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Coordinate{}, fmt.Errorf("nav: position source returned %d", resp.StatusCode)
	}
	var pos Coordinate
	if err := json.NewDecoder(resp.Body).Decode(&pos); err != nil {
		return Coordinate{}, fmt.Errorf("nav: decode position: %w", err)
	}
	return pos, nil
}

// Watch polls Current on the fix interval. Fetch errors are skipped so a
// brief companion outage does not end the watch.
func (p *HTTPPosition) Watch(ctx context.Context, fn func(Coordinate)) (func(), error) {
	first, err := p.Current(ctx)
	if err != nil {
		return nil, err
	}

	var stopped atomic.Bool
	done := make(chan struct{})
	go func() {
		fn(first)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				pos, err := p.Current(ctx)
				if err != nil || stopped.Load() {
					continue
				}
				fn(pos)
			}
		}
	}()
	return func() {
		if stopped.CompareAndSwap(false, true) {
			close(done)
		}
	}, nil
}
