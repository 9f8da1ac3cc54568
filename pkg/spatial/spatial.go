// Package spatial converts raw detection geometry into spoken spatial
// judgments: direction relative to the camera axis, estimated distance, and
// whether the object is close enough to be worth announcing.
//
// The math assumes a pinhole camera with a fixed horizontal field of view.
// Distance comes from known real-world reference heights per object class;
// classes without a reference height fall back to a bbox-size heuristic that
// yields only a qualitative "close" judgment.
package spatial

import (
	"math"
	"strings"

	"github.com/sightpath/go-sightpath/pkg/detect"
)

// Direction is the spoken direction bucket for an object.
type Direction string

const (
	DirectionAhead Direction = "straight ahead"
	DirectionLeft  Direction = "left front"
	DirectionRight Direction = "right front"
)

// DefaultFOVDegrees is the assumed horizontal field of view.
const DefaultFOVDegrees = 60.0

const (
	// Angular threshold separating straight-ahead from lateral.
	directionThresholdDegrees = 10.0

	// Distance clamp for the reference-height model.
	minDistanceMeters = 0.2
	maxDistanceMeters = 50.0

	// Announcement radii. Forward objects are flagged farther away than
	// lateral ones, reflecting collision risk.
	forwardAnnounceMeters = 10.0
	lateralAnnounceMeters = 2.0

	// Size-ratio thresholds for classes without a reference height.
	forwardCloseRatio = 0.15
	lateralCloseRatio = 0.30
)

// referenceHeights maps object classes to approximate real-world heights in
// meters, used for monocular distance estimation.
var referenceHeights = map[string]float64{
	"person":     1.7,
	"car":        1.4,
	"bicycle":    1.1,
	"motorcycle": 1.1,
	"dog":        0.5,
	"chair":      1.0,
	"bottle":     0.25,
	"cup":        0.1,
	"stop sign":  2.0,
	"bench":      1.0,
}

// Annotated is a detection with uniform spatial judgments attached. It is
// the single shape downstream announcement code consumes, whether the
// judgments were computed here or supplied by the server.
type Annotated struct {
	detect.Detection

	Direction    Direction
	AngleDegrees float64

	// DistanceMeters is 0 when no numeric estimate exists; SizeRatio then
	// carries the qualitative closeness signal.
	DistanceMeters float64
	SizeRatio      float64

	Moving bool

	// Announce reports whether the object is within its announcement
	// radius and should be considered for speech.
	Announce bool
}

// Estimator computes spatial annotations. The zero value is not ready; use
// NewEstimator.
type Estimator struct {
	FOVDegrees float64
}

// NewEstimator returns an estimator with the default field of view.
func NewEstimator() Estimator {
	return Estimator{FOVDegrees: DefaultFOVDegrees}
}

// Focal returns the pinhole focal length in pixels for a canvas height.
func (e Estimator) Focal(height float64) float64 {
	return 0.5 * height / math.Tan(e.FOVDegrees*math.Pi/360)
}

// Annotate computes the spatial judgment for one detection on a canvas of
// the given pixel dimensions. It is a pure function of its inputs.
//
// Server-enriched detections keep their explicit direction, distance and
// motion flag; only the announcement gate is applied locally.
func (e Estimator) Annotate(d detect.Detection, width, height float64) Annotated {
	focal := e.Focal(height)
	cx := d.BBox.CenterX()
	angle := math.Atan((cx-width/2)/focal) * (180 / math.Pi)

	a := Annotated{
		Detection:    d,
		AngleDegrees: angle,
		Direction:    classifyDirection(angle),
	}
	if height > 0 {
		a.SizeRatio = d.BBox.Height() / height
	}

	if enr := d.Enrichment; enr != nil {
		// Upstream judgments take precedence over local geometry.
		a.Direction = parseDirection(enr.Direction)
		a.DistanceMeters = enr.DistanceMeters
		a.Moving = enr.Moving
		a.Announce = withinRadius(a.Direction, a.DistanceMeters)
		return a
	}

	if ref, ok := referenceHeight(d); ok {
		dist := ref * focal / math.Max(1, d.BBox.Height())
		a.DistanceMeters = clamp(dist, minDistanceMeters, maxDistanceMeters)
		a.Announce = withinRadius(a.Direction, a.DistanceMeters)
		return a
	}

	// No reference height: qualitative closeness only.
	if a.Direction == DirectionAhead {
		a.Announce = a.SizeRatio >= forwardCloseRatio
	} else {
		a.Announce = a.SizeRatio >= lateralCloseRatio
	}
	return a
}

// withinRadius applies the asymmetric announcement radii. Moving objects use
// the same radii; their cool-down bypass happens downstream.
func withinRadius(dir Direction, meters float64) bool {
	if dir == DirectionAhead {
		return meters <= forwardAnnounceMeters
	}
	return meters <= lateralAnnounceMeters
}

func classifyDirection(angleDegrees float64) Direction {
	switch {
	case angleDegrees <= -directionThresholdDegrees:
		return DirectionLeft
	case angleDegrees >= directionThresholdDegrees:
		return DirectionRight
	default:
		return DirectionAhead
	}
}

// parseDirection maps a server-provided direction string onto our buckets,
// defaulting to straight-ahead for anything unrecognized.
func parseDirection(s string) Direction {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionLeft:
		return DirectionLeft
	case DirectionRight:
		return DirectionRight
	default:
		return DirectionAhead
	}
}

// referenceHeight looks up the real-world height for a detection's class,
// falling back to its label.
func referenceHeight(d detect.Detection) (float64, bool) {
	if h, ok := referenceHeights[strings.ToLower(d.Class)]; ok {
		return h, true
	}
	h, ok := referenceHeights[strings.ToLower(d.Label)]
	return h, ok
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
