// Package detect defines the detection data model and the detector sources
// consumed by the fusion engine.
//
// A Detection is raw camera-plane geometry (bbox, class, score). Detections
// returned by the server may additionally carry an Enrichment with an explicit
// direction, distance and motion flag; the spatial estimator treats enriched
// values as authoritative over locally computed geometry.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
)

// AnnounceScoreThreshold is the minimum confidence for a detection to be
// considered for spoken announcement. Lower-scored detections are still
// drawn on the overlay.
const AnnounceScoreThreshold = 0.3

// FallbackLabel is spoken when a detection carries neither a user-facing
// label nor a class name.
const FallbackLabel = "object"

// BBox is a bounding box in canvas pixels: x, y, width, height.
type BBox [4]float64

// Width returns the box width.
func (b BBox) Width() float64 { return b[2] }

// Height returns the box height.
func (b BBox) Height() float64 { return b[3] }

// CenterX returns the horizontal center of the box.
func (b BBox) CenterX() float64 { return b[0] + b[2]/2 }

// Enrichment carries server-side spatial judgments attached to a detection.
type Enrichment struct {
	// Direction is the spoken direction, e.g. "straight ahead".
	Direction string

	// DistanceMeters is the estimated distance to the object.
	DistanceMeters float64

	// Moving reports whether the object appears to be in motion
	// (inferred from consecutive frames).
	Moving bool
}

// Detection is a single detected object for one tick. Detections are created
// fresh each tick and never mutated; the next tick's result supersedes them.
type Detection struct {
	BBox  BBox
	Label string // user-facing label; may be empty when only Class is known
	Class string // detector vocabulary class name
	Score float64

	// Enrichment is non-nil only for server detections that include
	// explicit direction/distance/motion.
	Enrichment *Enrichment
}

// DisplayName returns the label to speak and draw: the user-facing label,
// falling back to the class name, then to a generic word.
func (d Detection) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	if d.Class != "" {
		return d.Class
	}
	return FallbackLabel
}

// Key returns the dedup key used when merging detections from two sources:
// display name plus exact bbox coordinates. No fuzzy IoU matching.
func (d Detection) Key() string {
	return fmt.Sprintf("%s@%g,%g,%g,%g", d.DisplayName(), d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3])
}

// wireDetection is the JSON wire form shared with the gateway.
type wireDetection struct {
	BBox     []float64 `json:"bbox"`
	Label    string    `json:"label,omitempty"`
	Class    string    `json:"class,omitempty"`
	Score    float64   `json:"score"`
	Position string    `json:"position,omitempty"`
	Distance *float64  `json:"distance_m,omitempty"`
	Moving   bool      `json:"moving,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (d Detection) MarshalJSON() ([]byte, error) {
	w := wireDetection{
		BBox:  d.BBox[:],
		Label: d.Label,
		Class: d.Class,
		Score: d.Score,
	}
	if d.Enrichment != nil {
		w.Position = d.Enrichment.Direction
		dist := d.Enrichment.DistanceMeters
		w.Distance = &dist
		w.Moving = d.Enrichment.Moving
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. A detection is treated as
// enriched only when both a position and a numeric distance are present.
func (d *Detection) UnmarshalJSON(data []byte) error {
	var w wireDetection
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = Detection{Label: w.Label, Class: w.Class, Score: w.Score}
	for i := 0; i < len(w.BBox) && i < 4; i++ {
		d.BBox[i] = w.BBox[i]
	}
	if w.Position != "" && w.Distance != nil {
		d.Enrichment = &Enrichment{
			Direction:      w.Position,
			DistanceMeters: *w.Distance,
			Moving:         w.Moving,
		}
	}
	return nil
}

// Frame is a single captured camera frame.
type Frame struct {
	// JPEG is the encoded frame image.
	JPEG []byte

	// Width and Height are the canvas dimensions in pixels. Detection
	// bboxes are expressed in this coordinate space.
	Width, Height int
}

// Detector finds objects in a frame. Implementations may be local models or
// remote services; errors are recovered by the fusion engine, never shown to
// the user.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]Detection, error)
}
