package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sightpath/go-sightpath/pkg/camera"
	"github.com/sightpath/go-sightpath/pkg/detect"
	"github.com/sightpath/go-sightpath/pkg/fusion"
	"github.com/sightpath/go-sightpath/pkg/overlay"
)

type fakeSpeech struct {
	mu       sync.Mutex
	texts    []string
	unlocked bool
}

func (f *fakeSpeech) Enqueue(text, voiceID string) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
}

func (f *fakeSpeech) Unlock(ctx context.Context) {
	f.mu.Lock()
	f.unlocked = true
	f.mu.Unlock()
}

func (f *fakeSpeech) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

func (f *fakeSpeech) contains(sub string) bool {
	for _, t := range f.all() {
		if strings.Contains(t, sub) {
			return true
		}
	}
	return false
}

type countingPublisher struct {
	mu     sync.Mutex
	states []overlay.State
}

func (c *countingPublisher) Publish(ctx context.Context, s overlay.State) error {
	c.mu.Lock()
	c.states = append(c.states, s)
	c.mu.Unlock()
	return nil
}

func (c *countingPublisher) Close() error { return nil }

func (c *countingPublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.states)
}

type fakeNav struct {
	mu        sync.Mutex
	active    bool
	cancelled bool
}

func (f *fakeNav) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeNav) Cancel() {
	f.mu.Lock()
	f.cancelled = true
	f.mu.Unlock()
}

func testFrame() detect.Frame {
	return detect.Frame{JPEG: []byte{0xff, 0xd8}, Width: 640, Height: 480}
}

// nearPerson is confidently detected, centered and close enough to be
// announced.
func nearPerson() detect.Detection {
	return detect.Detection{
		BBox:  detect.BBox{270, 100, 100, 100},
		Class: "person",
		Score: 0.9,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newTestPipeline(t *testing.T, local detect.Detector, opts ...Option) (*Pipeline, *fakeSpeech, *countingPublisher) {
	t.Helper()
	src := camera.NewStatic()
	src.SetFrame(testFrame())
	engine := fusion.New(local, nil, fusion.PolicyLocalFirst)
	sp := &fakeSpeech{}
	pub := &countingPublisher{}
	opts = append([]Option{WithRenderInterval(2 * time.Millisecond)}, opts...)
	return New(src, engine, sp, pub, opts...), sp, pub
}

func TestTickInterval(t *testing.T) {
	tests := []struct {
		name string
		fps  int
		want time.Duration
	}{
		{"two fps", 2, 500 * time.Millisecond},
		{"four fps", 4, 250 * time.Millisecond},
		{"floored at minimum", 30, MinTickInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPipeline(t, detect.NewMock(), WithFPS(tt.fps))
			if got := p.TickInterval(); got != tt.want {
				t.Errorf("TickInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSingleDetectionInFlight(t *testing.T) {
	slow := &detect.Mock{
		DetectFunc: func(ctx context.Context, frame detect.Frame) ([]detect.Detection, error) {
			time.Sleep(250 * time.Millisecond)
			return nil, nil
		},
	}
	p, _, _ := newTestPipeline(t, slow, WithFPS(30))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	// The detection takes 250ms while the interval is 125ms; a second
	// tick must not launch while the first is in flight.
	time.Sleep(200 * time.Millisecond)
	if got := slow.Calls(); got != 1 {
		t.Errorf("detector called %d times while one tick in flight, want 1", got)
	}
}

func TestStartStop(t *testing.T) {
	mock := detect.NewMock()
	p, sp, pub := newTestPipeline(t, mock, WithFPS(30))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(context.Background()); err != ErrAlreadyRunning {
		t.Errorf("second Start error = %v, want ErrAlreadyRunning", err)
	}
	if !sp.contains("Detection started") {
		t.Error("start announcement not enqueued")
	}
	sp.mu.Lock()
	unlocked := sp.unlocked
	sp.mu.Unlock()
	if !unlocked {
		t.Error("speech queue not unlocked on start")
	}

	waitFor(t, time.Second, func() bool { return mock.Calls() >= 1 })
	waitFor(t, time.Second, func() bool { return pub.count() >= 2 })

	p.Stop()
	if p.Running() {
		t.Error("Running() = true after Stop")
	}
	calls := mock.Calls()
	publishes := pub.count()

	// After Stop no further ticks may run. The overlay-clear publish
	// from Stop itself is the only extra snapshot allowed.
	time.Sleep(4 * MinTickInterval)
	if got := mock.Calls(); got != calls {
		t.Errorf("detector called after Stop: %d -> %d", calls, got)
	}
	if got := pub.count(); got > publishes+1 {
		t.Errorf("overlay published after Stop: %d -> %d", publishes, got)
	}
}

func TestStopDiscardsLateResult(t *testing.T) {
	release := make(chan struct{})
	slow := &detect.Mock{
		DetectFunc: func(ctx context.Context, frame detect.Frame) ([]detect.Detection, error) {
			<-release
			return []detect.Detection{nearPerson()}, nil
		},
	}
	p, sp, _ := newTestPipeline(t, slow, WithFPS(30))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, time.Second, func() bool { return slow.Calls() == 1 })

	p.Stop()
	before := len(sp.all())
	close(release)
	time.Sleep(50 * time.Millisecond)

	if got := len(sp.all()); got != before {
		t.Error("late detection result produced an announcement after Stop")
	}
	if got := p.Status(); got != "stopped" {
		t.Errorf("Status() = %q, want stopped", got)
	}
}

func TestAnnouncementPath(t *testing.T) {
	mock := detect.NewMock(nearPerson())
	p, sp, _ := newTestPipeline(t, mock, WithFPS(30))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	waitFor(t, time.Second, func() bool { return sp.contains("person straight ahead") })
}

func TestLowConfidenceNotAnnounced(t *testing.T) {
	d := nearPerson()
	d.Score = 0.2
	mock := detect.NewMock(d)
	p, sp, _ := newTestPipeline(t, mock, WithFPS(30))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	waitFor(t, time.Second, func() bool { return mock.Calls() >= 3 })
	for _, text := range sp.all() {
		if strings.Contains(text, "person") {
			t.Fatalf("low-confidence detection announced: %q", text)
		}
	}
}

func TestNavActiveSuppressesAnnouncements(t *testing.T) {
	mock := detect.NewMock(nearPerson())
	nav := &fakeNav{active: true}
	p, sp, pub := newTestPipeline(t, mock, WithFPS(30), WithNavState(nav))

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, time.Second, func() bool { return mock.Calls() >= 2 })

	for _, text := range sp.all() {
		if strings.Contains(text, "person") {
			t.Fatalf("announcement made while navigation active: %q", text)
		}
	}
	// Overlay must keep updating even while speech is suppressed.
	if pub.count() < 2 {
		t.Error("overlay not republished during navigation")
	}

	p.Stop()
	nav.mu.Lock()
	cancelled := nav.cancelled
	nav.mu.Unlock()
	if !cancelled {
		t.Error("navigation not cancelled by Stop")
	}
}
