// Package speech delivers spoken output through a serialized, gesture-gated
// playback queue, and provides clients for the speech synthesis and
// recognition services.
//
// The queue is the single audio consumer in the process: utterances play one
// at a time, strictly in enqueue order. Until audio output is unlocked by a
// user gesture the consumer leaves the head of the queue in place, so
// nothing enqueued before unlock is lost.
package speech

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Item is one queued utterance. It is owned exclusively by the queue between
// enqueue and playback completion.
type Item struct {
	ID      uuid.UUID
	Text    string
	VoiceID string
}

// Queue is the speech delivery actor. Create with NewQueue, then run the
// consumer with Run in its own goroutine.
type Queue struct {
	synth  Synthesizer
	sink   Sink
	logger *slog.Logger

	mu    sync.Mutex
	items []Item
	wake  chan struct{}

	unlocked bool
	unlockCh chan struct{} // closed once on unlock
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the structured logger.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) { q.logger = logger.With("component", "speech.queue") }
}

// NewQueue creates the speech queue.
func NewQueue(synth Synthesizer, sink Sink, opts ...QueueOption) *Queue {
	q := &Queue{
		synth:    synth,
		sink:     sink,
		logger:   slog.Default().With("component", "speech.queue"),
		wake:     make(chan struct{}, 1),
		unlockCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends an utterance. It never blocks and always succeeds.
func (q *Queue) Enqueue(text, voiceID string) {
	if text == "" {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, Item{ID: uuid.New(), Text: text, VoiceID: voiceID})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of items waiting to play.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Unlocked reports whether audio output has been unlocked.
func (q *Queue) Unlocked() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unlocked
}

// Unlock enables audio output. Platforms require a user gesture before
// playback, so this must be called from a gesture handler. It is idempotent
// and process-wide once set. The near-silent tone played here satisfies the
// gesture requirement on the output device.
func (q *Queue) Unlock(ctx context.Context) {
	q.mu.Lock()
	if q.unlocked {
		q.mu.Unlock()
		return
	}
	q.unlocked = true
	close(q.unlockCh)
	q.mu.Unlock()

	if err := q.sink.Play(ctx, unlockTone(), DefaultSampleRate); err != nil {
		q.logger.Debug("unlock tone failed", "error", err)
	}
	q.logger.Info("audio unlocked")
}

// Run drains the queue until the context is cancelled. It is the queue's
// single consumer; playback order equals enqueue order.
func (q *Queue) Run(ctx context.Context) {
	// Gate on unlock first. Items enqueued meanwhile stay put.
	select {
	case <-ctx.Done():
		return
	case <-q.unlockCh:
	}

	for {
		item, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}
		if ctx.Err() != nil {
			return
		}
		q.play(ctx, item)
	}
}

func (q *Queue) pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// play synthesizes, decodes and plays one item to completion. A failure at
// any stage drops this item silently; a broken utterance must never stall
// the ones behind it.
func (q *Queue) play(ctx context.Context, item Item) {
	audio, err := q.synth.Synthesize(ctx, item.Text, item.VoiceID)
	if err != nil {
		q.logger.Debug("synthesis failed, dropping item", "id", item.ID, "error", err)
		return
	}

	pcm, rate, err := audio.PCM()
	if err != nil {
		q.logger.Debug("decode failed, dropping item", "id", item.ID, "error", err)
		return
	}

	if err := q.sink.Play(ctx, pcm, rate); err != nil {
		q.logger.Debug("playback failed, dropping item", "id", item.ID, "error", err)
		return
	}
}

// unlockTone returns ~100ms of near-silent PCM16. Amplitude is far below
// audibility but nonzero, enough to open the output path.
func unlockTone() []byte {
	samples := DefaultSampleRate / 10
	tone := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(2 * (i % 2)) // alternating ±LSB-scale wiggle
		tone[2*i] = byte(v)
		tone[2*i+1] = byte(v >> 8)
	}
	return tone
}
