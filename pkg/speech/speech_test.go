package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueHoldsUntilUnlock(t *testing.T) {
	synth := &MockSynthesizer{}
	sink := &MockSink{}
	q := NewQueue(synth, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue("first", "")
	q.Enqueue("second", "")

	// The consumer is gated on the unlock gesture; nothing plays and
	// nothing is dropped.
	time.Sleep(50 * time.Millisecond)
	if sink.Played() != 0 {
		t.Fatalf("played %d items before unlock", sink.Played())
	}
	if q.Len() != 2 {
		t.Fatalf("queue len = %d, want 2", q.Len())
	}

	// Unlock plays the gesture tone, then both held items in order.
	done := sink.ExpectPlays(3)
	q.Unlock(ctx)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("held items did not play after unlock")
	}

	texts := synth.Texts()
	if len(texts) != 2 || texts[0] != "first" || texts[1] != "second" {
		t.Errorf("playback order = %v", texts)
	}
}

func TestQueueOrder(t *testing.T) {
	synth := &MockSynthesizer{}
	sink := &MockSink{}
	q := NewQueue(synth, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Unlock(ctx)
	go q.Run(ctx)

	done := sink.ExpectPlays(4) // unlock tone + 3 items
	q.Enqueue("a", "")
	q.Enqueue("b", "")
	q.Enqueue("c", "")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("items did not play")
	}

	texts := synth.Texts()
	if len(texts) != 3 || texts[0] != "a" || texts[1] != "b" || texts[2] != "c" {
		t.Errorf("playback order = %v", texts)
	}
}

func TestQueueDropsFailedItemSilently(t *testing.T) {
	synth := &MockSynthesizer{
		SynthesizeFunc: func(ctx context.Context, text, voiceID string) (*Audio, error) {
			if text == "broken" {
				return nil, errors.New("synthesis failed")
			}
			return &Audio{Data: make([]byte, 480)}, nil
		},
	}
	sink := &MockSink{}
	q := NewQueue(synth, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Unlock(ctx)
	go q.Run(ctx)

	done := sink.ExpectPlays(2) // unlock tone + "after"
	q.Enqueue("broken", "")
	q.Enqueue("after", "")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue stalled behind a failed item")
	}

	if q.Len() != 0 {
		t.Errorf("queue len = %d, want 0", q.Len())
	}
}

func TestQueuePlaybackErrorDoesNotStall(t *testing.T) {
	synth := &MockSynthesizer{}
	var calls int
	var mu sync.Mutex
	sink := &MockSink{
		PlayFunc: func(ctx context.Context, pcm []byte, sampleRate int) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 2 { // first real item after the unlock tone
				return errors.New("device busy")
			}
			return nil
		},
	}
	q := NewQueue(synth, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Unlock(ctx)
	go q.Run(ctx)

	done := sink.ExpectPlays(2) // unlock tone + "second"; "first" errors
	q.Enqueue("first", "")
	q.Enqueue("second", "")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue stalled behind a playback failure")
	}
}

func TestQueueEnqueueEmpty(t *testing.T) {
	q := NewQueue(&MockSynthesizer{}, &MockSink{})
	q.Enqueue("", "")
	if q.Len() != 0 {
		t.Errorf("empty text enqueued, len = %d", q.Len())
	}
}

func TestUnlockIdempotent(t *testing.T) {
	sink := &MockSink{}
	q := NewQueue(&MockSynthesizer{}, sink)

	ctx := context.Background()
	q.Unlock(ctx)
	q.Unlock(ctx)
	q.Unlock(ctx)

	if sink.Played() != 1 {
		t.Errorf("unlock tone played %d times, want 1", sink.Played())
	}
	if !q.Unlocked() {
		t.Error("queue not unlocked")
	}
}

func TestAudioPCMPassthrough(t *testing.T) {
	a := &Audio{Data: []byte{1, 2, 3, 4}}
	pcm, rate, err := a.PCM()
	if err != nil {
		t.Fatalf("PCM: %v", err)
	}
	if rate != DefaultSampleRate {
		t.Errorf("rate = %d, want %d", rate, DefaultSampleRate)
	}
	if len(pcm) != 4 {
		t.Errorf("pcm len = %d, want 4", len(pcm))
	}
}

func TestAudioPCMUnknownFormat(t *testing.T) {
	a := &Audio{Data: []byte{1}, Format: "mp3_44100"}
	if _, _, err := a.PCM(); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("err = %v, want ErrUnknownFormat", err)
	}
}
