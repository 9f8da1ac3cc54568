package announce

import (
	"testing"
	"time"

	"github.com/sightpath/go-sightpath/pkg/detect"
	"github.com/sightpath/go-sightpath/pkg/spatial"
)

func TestPhrase(t *testing.T) {
	tests := []struct {
		name string
		a    spatial.Annotated
		want string
	}{
		{
			name: "not announced",
			a:    spatial.Annotated{Detection: detect.Detection{Class: "person"}},
			want: "",
		},
		{
			name: "numeric distance",
			a: spatial.Annotated{
				Detection:      detect.Detection{Class: "person"},
				Direction:      spatial.DirectionAhead,
				DistanceMeters: 2.94,
				Announce:       true,
			},
			want: "person straight ahead, about 2.9 meters",
		},
		{
			name: "whole meters drop the decimal",
			a: spatial.Annotated{
				Detection:      detect.Detection{Class: "car"},
				Direction:      spatial.DirectionLeft,
				DistanceMeters: 3.04,
				Announce:       true,
			},
			want: "car left front, about 3 meters",
		},
		{
			name: "moving prefix",
			a: spatial.Annotated{
				Detection:      detect.Detection{Class: "car"},
				Direction:      spatial.DirectionRight,
				DistanceMeters: 1.5,
				Moving:         true,
				Announce:       true,
			},
			want: "moving car right front, about 1.5 meters",
		},
		{
			name: "no numeric distance",
			a: spatial.Annotated{
				Detection: detect.Detection{Class: "plant", Label: "Plant"},
				Direction: spatial.DirectionAhead,
				Announce:  true,
			},
			want: "plant straight ahead, very close",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Phrase(tt.a); got != tt.want {
				t.Errorf("Phrase() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatMeters(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2.94, "2.9"},
		{2.95, "3"},
		{3.0, "3"},
		{0.25, "0.3"},
		{11.78, "11.8"},
	}
	for _, tt := range tests {
		if got := formatMeters(tt.in); got != tt.want {
			t.Errorf("formatMeters(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJoin(t *testing.T) {
	got := Join([]string{"person straight ahead, about 3 meters", "car left front, about 2 meters"})
	want := "person straight ahead, about 3 meters, car left front, about 2 meters"
	if got != want {
		t.Errorf("Join() = %q, want %q", got, want)
	}
	if Join(nil) != "" {
		t.Errorf("Join(nil) = %q, want empty", Join(nil))
	}
}

func TestDebouncerCooldown(t *testing.T) {
	now := time.Unix(1000, 0)
	db := NewDebouncer(WithClock(func() time.Time { return now }))

	phrase := Utterance{Text: "person straight ahead, about 3 meters"}

	if got := db.Filter([]Utterance{phrase}); len(got) != 1 {
		t.Fatalf("first pass filtered out: %v", got)
	}
	// Exactly at the cool-down boundary is still suppressed.
	now = now.Add(DefaultCooldown)
	if got := db.Filter([]Utterance{phrase}); len(got) != 0 {
		t.Fatalf("phrase at cool-down boundary passed: %v", got)
	}
	// One millisecond past the boundary passes again.
	now = now.Add(time.Millisecond)
	if got := db.Filter([]Utterance{phrase}); len(got) != 1 {
		t.Fatalf("phrase past cool-down suppressed: %v", got)
	}
}

func TestDebouncerPhraseKeyed(t *testing.T) {
	now := time.Unix(1000, 0)
	db := NewDebouncer(WithClock(func() time.Time { return now }))

	db.Filter([]Utterance{{Text: "person straight ahead, about 3 meters"}})

	// Same object at a new distance bucket renders a different phrase
	// and is not suppressed.
	got := db.Filter([]Utterance{{Text: "person straight ahead, about 2 meters"}})
	if len(got) != 1 {
		t.Errorf("new distance bucket suppressed: %v", got)
	}
}

func TestDebouncerMovingBypass(t *testing.T) {
	now := time.Unix(1000, 0)
	db := NewDebouncer(WithClock(func() time.Time { return now }))

	moving := Utterance{Text: "moving car right front, about 1.5 meters", Moving: true}

	for i := 0; i < 3; i++ {
		if got := db.Filter([]Utterance{moving}); len(got) != 1 {
			t.Fatalf("tick %d: moving phrase suppressed: %v", i, got)
		}
	}

	// A moving pass does not record the phrase, so an identical
	// non-moving phrase is not considered recently spoken.
	still := Utterance{Text: moving.Text}
	if got := db.Filter([]Utterance{still}); len(got) != 1 {
		t.Errorf("non-moving phrase blocked by moving history: %v", got)
	}
}

func TestDebouncerSkipsEmpty(t *testing.T) {
	db := NewDebouncer()
	got := db.Filter([]Utterance{{Text: ""}, {Text: "bench left front, very close"}})
	if len(got) != 1 || got[0] != "bench left front, very close" {
		t.Errorf("Filter() = %v", got)
	}
}
