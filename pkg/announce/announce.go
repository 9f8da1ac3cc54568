// Package announce renders spatial judgments into spoken phrases and
// suppresses repeats with a per-phrase cool-down.
//
// The cool-down map is keyed by the fully rendered phrase, not the raw
// label, so an object moving between distance buckets produces a fresh
// announcement. Phrases for moving objects bypass the cool-down entirely
// and keep repeating while the hazard persists.
package announce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sightpath/go-sightpath/pkg/spatial"
)

// DefaultCooldown is the minimum time a phrase is suppressed after being
// spoken.
const DefaultCooldown = 4000 * time.Millisecond

// Utterance is a candidate phrase for one tick.
type Utterance struct {
	Text   string
	Moving bool
}

// Phrase renders the spoken phrase for an annotated detection.
// Returns "" when the object is not worth announcing.
func Phrase(a spatial.Annotated) string {
	if !a.Announce {
		return ""
	}
	label := strings.ToLower(a.DisplayName())

	if a.DistanceMeters > 0 {
		meters := formatMeters(a.DistanceMeters)
		if a.Moving {
			return fmt.Sprintf("moving %s %s, about %s meters", label, a.Direction, meters)
		}
		return fmt.Sprintf("%s %s, about %s meters", label, a.Direction, meters)
	}
	return fmt.Sprintf("%s %s, very close", label, a.Direction)
}

// formatMeters rounds to one decimal and trims a trailing ".0", so the
// rendered distance doubles as the phrase's distance bucket.
func formatMeters(m float64) string {
	return strconv.FormatFloat(math.Round(m*10)/10, 'f', -1, 64)
}

// Join concatenates the phrases surviving one tick into a single utterance
// so the speech queue receives one item per tick, not N.
func Join(phrases []string) string {
	return strings.Join(phrases, ", ")
}

// Debouncer suppresses recently spoken phrases. Entries are never evicted;
// the phrase vocabulary is a small finite set of label, direction and
// distance-bucket combinations, so the map stays bounded in practice.
type Debouncer struct {
	cooldown time.Duration
	now      func() time.Time

	mu         sync.Mutex
	lastSpoken map[string]time.Time
}

// DebouncerOption configures a Debouncer.
type DebouncerOption func(*Debouncer)

// WithCooldown overrides the suppression window.
func WithCooldown(d time.Duration) DebouncerOption {
	return func(db *Debouncer) { db.cooldown = d }
}

// WithClock injects a clock, for deterministic tests.
func WithClock(now func() time.Time) DebouncerOption {
	return func(db *Debouncer) { db.now = now }
}

// NewDebouncer creates a debouncer with the default cool-down.
func NewDebouncer(opts ...DebouncerOption) *Debouncer {
	db := &Debouncer{
		cooldown:   DefaultCooldown,
		now:        time.Now,
		lastSpoken: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Filter returns the texts that should be spoken now, recording non-moving
// phrases into the cool-down map. Moving phrases always pass and are never
// recorded, so they re-announce on every tick that still sees the hazard.
func (db *Debouncer) Filter(utterances []Utterance) []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := db.now()
	var out []string
	for _, u := range utterances {
		if u.Text == "" {
			continue
		}
		if u.Moving {
			out = append(out, u.Text)
			continue
		}
		if last, ok := db.lastSpoken[u.Text]; ok && now.Sub(last) <= db.cooldown {
			continue
		}
		db.lastSpoken[u.Text] = now
		out = append(out, u.Text)
	}
	return out
}
