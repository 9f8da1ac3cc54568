package fusion

import (
	"context"
	"errors"
	"testing"

	"github.com/sightpath/go-sightpath/pkg/detect"
)

func det(class string, x float64) detect.Detection {
	return detect.Detection{BBox: detect.BBox{x, 10, 50, 50}, Class: class, Score: 0.8}
}

func frame() detect.Frame {
	return detect.Frame{JPEG: []byte("jpeg"), Width: 640, Height: 480}
}

func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"local-first", "server-first", "parallel"} {
		if _, err := ParsePolicy(s); err != nil {
			t.Errorf("ParsePolicy(%q) error: %v", s, err)
		}
	}
	if _, err := ParsePolicy("hybrid"); err == nil {
		t.Error("ParsePolicy accepted unknown policy")
	}
}

func TestLocalFirstUsesLocal(t *testing.T) {
	local := detect.NewMock(det("person", 100))
	remote := detect.NewMock(det("car", 200))
	e := New(local, remote, PolicyLocalFirst)

	r := e.Detect(context.Background(), frame())
	if r.Source != SourceLocal {
		t.Fatalf("source = %q, want local", r.Source)
	}
	if len(r.Detections) != 1 || r.Detections[0].DisplayName() != "person" {
		t.Errorf("unexpected detections: %+v", r.Detections)
	}
	if remote.Calls() != 0 {
		t.Errorf("remote called %d times, want 0", remote.Calls())
	}
}

func TestLocalFirstFallsBackOnError(t *testing.T) {
	local := detect.MockError(errors.New("model crashed"))
	remote := detect.NewMock(det("car", 200))
	e := New(local, remote, PolicyLocalFirst)

	r := e.Detect(context.Background(), frame())
	if r.Source != SourceServer {
		t.Fatalf("source = %q, want server", r.Source)
	}
	if len(r.Detections) != 1 {
		t.Errorf("got %d detections, want 1", len(r.Detections))
	}
}

func TestLocalFirstFallsBackOnEmpty(t *testing.T) {
	local := detect.NewMock() // succeeds with nothing
	remote := detect.NewMock(det("car", 200))
	e := New(local, remote, PolicyLocalFirst)

	r := e.Detect(context.Background(), frame())
	if r.Source != SourceServer {
		t.Errorf("source = %q, want server", r.Source)
	}
}

func TestServerFirstUsesServer(t *testing.T) {
	local := detect.NewMock(det("person", 100))
	remote := detect.NewMock(det("car", 200))
	e := New(local, remote, PolicyServerFirst)

	r := e.Detect(context.Background(), frame())
	if r.Source != SourceServer {
		t.Fatalf("source = %q, want server", r.Source)
	}
	if local.Calls() != 0 {
		t.Errorf("local called %d times, want 0", local.Calls())
	}
}

func TestBothFailYieldsEmptyResult(t *testing.T) {
	e := New(detect.MockError(errors.New("a")), detect.MockError(errors.New("b")), PolicyServerFirst)

	r := e.Detect(context.Background(), frame())
	if r.Source != SourceNone {
		t.Errorf("source = %q, want none", r.Source)
	}
	if len(r.Detections) != 0 {
		t.Errorf("got %d detections, want 0", len(r.Detections))
	}
	if r.Status == "" {
		t.Error("expected a failure status")
	}
}

func TestNilDetectors(t *testing.T) {
	e := New(nil, nil, PolicyParallel)
	r := e.Detect(context.Background(), frame())
	if r.Source != SourceMerged || len(r.Detections) != 0 {
		t.Errorf("result = %+v, want empty merged", r)
	}
}

func TestParallelMerge(t *testing.T) {
	// Server and local share the person@100; the local copy arrives
	// without enrichment, the server copy with it.
	enriched := det("person", 100)
	enriched.Enrichment = &detect.Enrichment{Direction: "straight ahead", DistanceMeters: 3, Moving: true}

	remote := detect.NewMock(enriched, det("car", 200))
	local := detect.NewMock(det("person", 100), det("dog", 300))
	e := New(local, remote, PolicyParallel)

	r := e.Detect(context.Background(), frame())
	if r.Source != SourceMerged {
		t.Fatalf("source = %q, want merged", r.Source)
	}
	if len(r.Detections) != 3 {
		t.Fatalf("got %d detections, want 3: %+v", len(r.Detections), r.Detections)
	}

	// First-insertion order: server group first.
	if r.Detections[0].DisplayName() != "person" || r.Detections[1].DisplayName() != "car" || r.Detections[2].DisplayName() != "dog" {
		t.Errorf("order = %q, %q, %q", r.Detections[0].DisplayName(), r.Detections[1].DisplayName(), r.Detections[2].DisplayName())
	}

	// Key collision keeps the later insertion: the local person, which
	// has no enrichment, replaced the server one in place.
	if r.Detections[0].Enrichment != nil {
		t.Error("collision kept the earlier insertion")
	}
}

func TestParallelLocalTranslation(t *testing.T) {
	local := detect.NewMock(det("potted plant", 100))
	e := New(local, nil, PolicyParallel)

	r := e.Detect(context.Background(), frame())
	if len(r.Detections) != 1 {
		t.Fatalf("got %d detections, want 1", len(r.Detections))
	}
	if r.Detections[0].Label != "plant" {
		t.Errorf("label = %q, want plant", r.Detections[0].Label)
	}
}

func TestMergeDistinctBBoxesKept(t *testing.T) {
	// Same class at different coordinates is two objects, not a dup.
	got := merge(
		[]detect.Detection{det("person", 100)},
		[]detect.Detection{det("person", 101)},
	)
	if len(got) != 2 {
		t.Errorf("got %d detections, want 2", len(got))
	}
}
