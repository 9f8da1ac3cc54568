package detect

import "strings"

// userLabels maps detector vocabulary class names to the labels spoken to
// the user. Classes without an entry keep their raw class name.
var userLabels = map[string]string{
	"person":        "person",
	"bicycle":       "bicycle",
	"car":           "car",
	"motorcycle":    "motorcycle",
	"bus":           "bus",
	"train":         "train",
	"truck":         "truck",
	"traffic light": "traffic light",
	"fire hydrant":  "fire hydrant",
	"stop sign":     "stop sign",
	"bench":         "bench",
	"bird":          "bird",
	"cat":           "cat",
	"dog":           "dog",
	"backpack":      "backpack",
	"umbrella":      "umbrella",
	"handbag":       "bag",
	"suitcase":      "suitcase",
	"bottle":        "bottle",
	"cup":           "cup",
	"chair":         "chair",
	"couch":         "couch",
	"potted plant":  "plant",
	"dining table":  "table",
	"tv":            "screen",
	"cell phone":    "phone",
}

// UserLabel translates a detector class name to its user-facing label.
// Unmapped classes pass through unchanged.
func UserLabel(class string) string {
	if label, ok := userLabels[strings.ToLower(class)]; ok {
		return label
	}
	return class
}

// Translate fills in user-facing labels for local detections in place of
// their raw class vocabulary. Detections that already carry a label are
// left alone.
func Translate(dets []Detection) []Detection {
	out := make([]Detection, len(dets))
	for i, d := range dets {
		if d.Label == "" && d.Class != "" {
			d.Label = UserLabel(d.Class)
		}
		out[i] = d
	}
	return out
}
