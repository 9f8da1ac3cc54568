// Package session runs the live detection pipeline: frames in,
// detections fused, spatial judgments attached, announcements
// debounced and queued for speech, overlay state republished every
// render tick.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sightpath/go-sightpath/pkg/announce"
	"github.com/sightpath/go-sightpath/pkg/camera"
	"github.com/sightpath/go-sightpath/pkg/detect"
	"github.com/sightpath/go-sightpath/pkg/fusion"
	"github.com/sightpath/go-sightpath/pkg/overlay"
	"github.com/sightpath/go-sightpath/pkg/spatial"
)

const (
	// MinTickInterval floors the detection cadence regardless of the
	// configured rate.
	MinTickInterval = 125 * time.Millisecond

	// DefaultRenderInterval is the overlay republish cadence.
	DefaultRenderInterval = 33 * time.Millisecond

	// DefaultFPS is the target detection rate.
	DefaultFPS = 2
)

// ErrAlreadyRunning is returned by Start while a session is active.
var ErrAlreadyRunning = errors.New("session: already running")

const startAnnouncement = "Detection started."

// Speech is the slice of the speech queue the pipeline needs.
type Speech interface {
	Enqueue(text, voiceID string)
	Unlock(ctx context.Context)
}

// NavState exposes the navigation flow to the pipeline. Announcements
// are muted while navigation is active so guidance stays audible, and
// stopping the session cancels guidance with it.
type NavState interface {
	Active() bool
	Cancel()
}

type noNav struct{}

func (noNav) Active() bool { return false }
func (noNav) Cancel()      {}

// Pipeline schedules detection ticks over a camera source and feeds
// the results to the overlay and the speech queue. At most one
// detection is in flight; render ticks never wait for it.
type Pipeline struct {
	frames    camera.Source
	engine    *fusion.Engine
	estimator spatial.Estimator
	debounce  *announce.Debouncer
	speech    Speech
	nav       NavState
	publisher overlay.Publisher
	logger    *slog.Logger

	voiceID        string
	fps            int
	renderInterval time.Duration

	mu       sync.Mutex
	running  bool
	inFlight bool
	gen      uint64
	lastTick time.Time
	last     fusion.Result
	lastSize [2]int
	status   string
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFPS sets the target detection rate. The effective tick interval
// never drops below MinTickInterval.
func WithFPS(fps int) Option {
	return func(p *Pipeline) {
		if fps > 0 {
			p.fps = fps
		}
	}
}

// WithRenderInterval overrides the overlay republish cadence.
func WithRenderInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.renderInterval = d
		}
	}
}

// WithVoiceID speaks announcements in the given synthesis voice.
func WithVoiceID(id string) Option {
	return func(p *Pipeline) { p.voiceID = id }
}

// WithNavState attaches the navigation flow.
func WithNavState(nav NavState) Option {
	return func(p *Pipeline) { p.nav = nav }
}

// WithDebouncer overrides the announcement debouncer.
func WithDebouncer(db *announce.Debouncer) Option {
	return func(p *Pipeline) { p.debounce = db }
}

// WithEstimator overrides the spatial estimator.
func WithEstimator(e spatial.Estimator) Option {
	return func(p *Pipeline) { p.estimator = e }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger.With("component", "session") }
}

// New wires a Pipeline from its collaborators.
func New(frames camera.Source, engine *fusion.Engine, sp Speech, pub overlay.Publisher, opts ...Option) *Pipeline {
	p := &Pipeline{
		frames:         frames,
		engine:         engine,
		estimator:      spatial.NewEstimator(),
		debounce:       announce.NewDebouncer(),
		speech:         sp,
		nav:            noNav{},
		publisher:      pub,
		logger:         slog.Default().With("component", "session"),
		fps:            DefaultFPS,
		renderInterval: DefaultRenderInterval,
		status:         "idle",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TickInterval returns the effective time between detection ticks.
func (p *Pipeline) TickInterval() time.Duration {
	interval := time.Second / time.Duration(p.fps)
	if interval < MinTickInterval {
		return MinTickInterval
	}
	return interval
}

// Start begins the render loop. It unlocks audio output, announces the
// session start and returns once the loop is scheduled.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	p.status = "running"
	p.lastTick = time.Time{}
	done := p.done
	p.mu.Unlock()

	p.speech.Unlock(ctx)
	p.speech.Enqueue(startAnnouncement, p.voiceID)
	p.logger.Info("session started", "policy", string(p.engine.Policy()), "tick_interval", p.TickInterval())

	go func() {
		defer close(done)
		p.run(runCtx)
	}()
	return nil
}

// Stop halts the render loop, invalidates any in-flight detection and
// cancels active navigation. It blocks until the loop has exited.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.gen++
	p.inFlight = false
	p.last = fusion.Result{}
	p.status = "stopped"
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
	p.nav.Cancel()

	// Clear the overlay so stale boxes are not left on screen.
	if err := p.publisher.Publish(context.Background(), overlay.State{}); err != nil {
		p.logger.Debug("clear overlay", "error", err)
	}
	p.logger.Info("session stopped")
}

// Running reports whether the pipeline is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Status returns the most recent tick status line.
func (p *Pipeline) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pipeline) run(ctx context.Context) {
	ticker := time.NewTicker(p.renderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.renderTick(ctx)
		}
	}
}

// renderTick republishes the overlay from the last completed result
// and, when the detection interval has elapsed and nothing is in
// flight, launches the next detection.
func (p *Pipeline) renderTick(ctx context.Context) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	state := overlay.State{
		Detections: p.last.Detections,
		Source:     string(p.last.Source),
		Status:     p.status,
		Width:      p.lastSize[0],
		Height:     p.lastSize[1],
		NavActive:  p.nav.Active(),
	}

	launch := false
	var gen uint64
	now := time.Now()
	if !p.inFlight && (p.lastTick.IsZero() || now.Sub(p.lastTick) >= p.TickInterval()) {
		p.inFlight = true
		p.lastTick = now
		gen = p.gen
		launch = true
	}
	p.mu.Unlock()

	if err := p.publisher.Publish(ctx, state); err != nil {
		p.logger.Debug("overlay publish failed", "error", err)
	}

	if launch {
		go p.detectTick(ctx, gen)
	}
}

func (p *Pipeline) detectTick(ctx context.Context, gen uint64) {
	frame, err := p.frames.Frame(ctx)
	if err != nil {
		p.logger.Debug("no frame for tick", "error", err)
		p.finishTick(gen, nil, detect.Frame{}, false)
		return
	}

	res := p.engine.Detect(ctx, frame)
	p.finishTick(gen, &res, frame, true)
}

// finishTick applies a completed detection. Results from a generation
// that was stopped are discarded outright.
func (p *Pipeline) finishTick(gen uint64, res *fusion.Result, frame detect.Frame, ok bool) {
	p.mu.Lock()
	if gen != p.gen || !p.running {
		p.mu.Unlock()
		return
	}
	p.inFlight = false
	if !ok {
		p.mu.Unlock()
		return
	}
	p.last = *res
	p.lastSize = [2]int{frame.Width, frame.Height}
	p.status = res.Status
	navActive := p.nav.Active()
	p.mu.Unlock()

	if navActive {
		return
	}
	p.announceResult(*res, frame.Width, frame.Height)
}

// announceResult turns one tick's detections into at most one queued
// utterance. Low-confidence detections never reach speech, and the
// debouncer holds back whatever was said recently.
func (p *Pipeline) announceResult(res fusion.Result, width, height int) {
	var utterances []announce.Utterance
	for _, d := range res.Detections {
		if d.Score < detect.AnnounceScoreThreshold {
			continue
		}
		a := p.estimator.Annotate(d, float64(width), float64(height))
		text := announce.Phrase(a)
		if text == "" {
			continue
		}
		utterances = append(utterances, announce.Utterance{Text: text, Moving: a.Moving})
	}
	if len(utterances) == 0 {
		return
	}

	merged := announce.Join(p.debounce.Filter(utterances))
	if merged == "" {
		return
	}
	p.speech.Enqueue(merged, p.voiceID)
}
