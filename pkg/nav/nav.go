// Package nav implements spoken turn-by-turn walking navigation. A
// single gesture toggles destination capture; the captured audio is
// transcribed, resolved to a walking route, and the user is guided
// step by step from geolocation fixes.
package nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sightpath/go-sightpath/pkg/record"
	"github.com/sightpath/go-sightpath/pkg/speech"
)

// AdvanceThresholdMeters is how close a fix must be to the current
// step's target before the next instruction is spoken. The same
// threshold detects arrival at the destination.
const AdvanceThresholdMeters = 25.0

// State names the navigator's position in its lifecycle.
type State string

const (
	StateIdle                 State = "idle"
	StateRecordingDestination State = "recording-destination"
	StateAwaitingLocation     State = "awaiting-location"
	StateRouteRequested       State = "route-requested"
	StateNavigating           State = "navigating"
	StateArrived              State = "arrived"
)

// Spoken prompts and errors. Not-found gets its own message so the
// user knows rephrasing may help; other failures share a generic one.
const (
	msgRecording     = "Recording. Say where you want to go, then press the navigation button again."
	msgNoMicrophone  = "Could not access the microphone."
	msgNoDestination = "I did not catch a destination."
	msgNoPosition    = "Could not get your current location."
	msgNotFound      = "No matching place found. Please try saying it differently."
	msgNoRoute       = "Could not plan a navigation route."
)

// Speaker delivers one spoken sentence. The speech queue satisfies
// this through a small adapter that pins the voice.
type Speaker interface {
	Speak(text string)
}

// SpeakerFunc adapts a function to Speaker.
type SpeakerFunc func(text string)

func (f SpeakerFunc) Speak(text string) { f(text) }

// session is the live route being walked. It owns the geolocation
// watch; cancelling the watch ends the session.
type session struct {
	route       *Route
	currentStep int
	cancelWatch func()
	finished    bool
}

// Navigator drives the capture-transcribe-route-guide flow. At most
// one session is active; starting a new capture supersedes it.
type Navigator struct {
	recorder   record.Recorder
	recognizer speech.Recognizer
	routes     RouteService
	position   PositionSource
	speaker    Speaker
	logger     *slog.Logger

	mu    sync.Mutex
	state State
	sess  *session
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Navigator) { n.logger = logger.With("component", "nav") }
}

// New wires a Navigator from its collaborators.
func New(rec record.Recorder, rz speech.Recognizer, rs RouteService, ps PositionSource, sp Speaker, opts ...Option) *Navigator {
	n := &Navigator{
		recorder:   rec,
		recognizer: rz,
		routes:     rs,
		position:   ps,
		speaker:    sp,
		logger:     slog.Default().With("component", "nav"),
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// State returns the current lifecycle state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Active reports whether a navigation flow is in progress. Ambient
// detection announcements are suppressed while this is true so route
// guidance is not drowned out.
func (n *Navigator) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch n.state {
	case StateAwaitingLocation, StateRouteRequested, StateNavigating:
		return true
	}
	return false
}

// HandleNavPress is the navigation gesture. The first press starts
// destination capture; the second stops it and runs the route flow to
// completion. Errors are also spoken so the caller only needs to log.
func (n *Navigator) HandleNavPress(ctx context.Context) error {
	n.mu.Lock()
	if n.state == StateRecordingDestination {
		n.mu.Unlock()
		return n.finishCapture(ctx)
	}

	// A fresh capture supersedes any session in flight.
	n.endSessionLocked(StateIdle)
	if err := n.recorder.Start(ctx); err != nil {
		n.mu.Unlock()
		n.speaker.Speak(msgNoMicrophone)
		return fmt.Errorf("nav: start capture: %w", err)
	}
	n.state = StateRecordingDestination
	n.mu.Unlock()

	n.speaker.Speak(msgRecording)
	return nil
}

func (n *Navigator) finishCapture(ctx context.Context) error {
	audio, err := n.recorder.Stop()
	if err != nil {
		n.toIdle()
		n.speaker.Speak(msgNoDestination)
		return fmt.Errorf("nav: stop capture: %w", err)
	}

	keyword, err := n.recognizer.Recognize(ctx, audio)
	if err != nil || keyword == "" {
		n.toIdle()
		n.speaker.Speak(msgNoDestination)
		if err != nil {
			return fmt.Errorf("nav: transcribe destination: %w", err)
		}
		return errors.New("nav: empty transcription")
	}
	n.logger.Info("destination captured", "keyword", keyword)

	n.setState(StateAwaitingLocation)
	origin, err := n.position.Current(ctx)
	if err != nil {
		n.toIdle()
		n.speaker.Speak(msgNoPosition)
		return fmt.Errorf("nav: current position: %w", err)
	}

	n.setState(StateRouteRequested)
	route, err := n.routes.PlanRoute(ctx, origin, keyword)
	if err != nil {
		n.toIdle()
		if errors.Is(err, ErrNoDestination) {
			n.speaker.Speak(msgNotFound)
		} else {
			n.speaker.Speak(msgNoRoute)
		}
		return err
	}

	return n.startSession(ctx, route)
}

func (n *Navigator) startSession(ctx context.Context, route *Route) error {
	sess := &session{route: route}

	n.mu.Lock()
	n.state = StateNavigating
	n.sess = sess
	n.mu.Unlock()

	intro := fmt.Sprintf("Planned a walking route to %s.", route.Destination.Name)
	if len(route.Steps) > 0 && route.Steps[0].Instruction != "" {
		intro = fmt.Sprintf("%s First, %s", intro, route.Steps[0].Instruction)
	}
	n.speaker.Speak(intro)

	cancel, err := n.position.Watch(ctx, func(pos Coordinate) {
		n.onFix(sess, pos)
	})
	if err != nil {
		n.toIdle()
		n.speaker.Speak(msgNoPosition)
		return fmt.Errorf("nav: watch position: %w", err)
	}

	n.mu.Lock()
	if n.sess == sess {
		sess.cancelWatch = cancel
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()
	// Superseded while the watch was starting.
	cancel()
	return nil
}

// onFix handles one geolocation update. Stale sessions are ignored so
// a superseded watch can never advance the new route.
func (n *Navigator) onFix(sess *session, pos Coordinate) {
	n.mu.Lock()
	if n.sess != sess || sess.finished {
		n.mu.Unlock()
		return
	}
	route := sess.route

	if sess.currentStep < len(route.Steps) {
		target := route.Destination.Location
		if wps := route.Steps[sess.currentStep].Waypoints; len(wps) > 0 {
			target = wps[len(wps)-1]
		}
		if Haversine(pos, target) > AdvanceThresholdMeters {
			n.mu.Unlock()
			return
		}
		sess.currentStep++
		var next string
		if sess.currentStep < len(route.Steps) {
			next = route.Steps[sess.currentStep].Instruction
		}
		n.mu.Unlock()
		if next != "" {
			n.speaker.Speak("Next, " + next)
		}
		return
	}

	if Haversine(pos, route.Destination.Location) > AdvanceThresholdMeters {
		n.mu.Unlock()
		return
	}
	sess.finished = true
	n.endSessionLocked(StateArrived)
	n.mu.Unlock()
	n.speaker.Speak("You have arrived at " + route.Destination.Name)
}

// Cancel stops any active session and returns the navigator to idle.
// Stopping the vision session calls this so guidance never outlives it.
func (n *Navigator) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateRecordingDestination {
		// Discard whatever was captured so far.
		if _, err := n.recorder.Stop(); err != nil {
			n.logger.Debug("discard capture", "error", err)
		}
	}
	n.endSessionLocked(StateIdle)
}

// endSessionLocked cancels the watch and clears the session. Callers
// hold n.mu.
func (n *Navigator) endSessionLocked(next State) {
	if n.sess != nil {
		if n.sess.cancelWatch != nil {
			n.sess.cancelWatch()
		}
		n.sess = nil
	}
	n.state = next
}

func (n *Navigator) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

func (n *Navigator) toIdle() {
	n.mu.Lock()
	n.endSessionLocked(StateIdle)
	n.mu.Unlock()
}
