// Package overlay carries the rendered detection state shown on top of
// the camera view. The pipeline republishes it every render tick from
// the last completed detection result, so the overlay stays continuous
// even while a new detection is still in flight.
package overlay

import (
	"context"

	"github.com/sightpath/go-sightpath/pkg/detect"
)

// State is one overlay snapshot.
type State struct {
	Detections []detect.Detection `json:"detections"`
	Source     string             `json:"source"`
	Status     string             `json:"status,omitempty"`
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	NavActive  bool               `json:"nav_active"`
}

// Publisher pushes overlay snapshots to whoever renders them.
type Publisher interface {
	Publish(ctx context.Context, s State) error
	Close() error
}

// Noop discards every snapshot. Used when no display is attached.
type Noop struct{}

func (Noop) Publish(ctx context.Context, s State) error { return nil }
func (Noop) Close() error                               { return nil }
