package speech

import (
	"context"
	"sync"
)

// MockSynthesizer implements Synthesizer for testing.
type MockSynthesizer struct {
	// SynthesizeFunc overrides the default behavior of returning short
	// silent PCM.
	SynthesizeFunc func(ctx context.Context, text, voiceID string) (*Audio, error)

	mu    sync.Mutex
	texts []string
}

// Synthesize records the text and delegates to SynthesizeFunc.
func (m *MockSynthesizer) Synthesize(ctx context.Context, text, voiceID string) (*Audio, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, voiceID)
	}
	return &Audio{Data: make([]byte, 480), Format: FormatPCM}, nil
}

// Texts returns the synthesized texts in call order.
func (m *MockSynthesizer) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}

// MockSink implements Sink for testing. Plays complete instantly unless
// PlayFunc is set.
type MockSink struct {
	PlayFunc func(ctx context.Context, pcm []byte, sampleRate int) error

	mu     sync.Mutex
	played [][]byte
	done   chan struct{}
	want   int
}

// ExpectPlays arms a channel that closes after n successful plays.
// Useful for synchronizing tests with the queue's consumer goroutine.
func (m *MockSink) ExpectPlays(n int) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = make(chan struct{})
	m.want = n
	if len(m.played) >= n {
		close(m.done)
	}
	return m.done
}

// Play records the PCM and delegates to PlayFunc if set.
func (m *MockSink) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if m.PlayFunc != nil {
		if err := m.PlayFunc(ctx, pcm, sampleRate); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.played = append(m.played, pcm)
	if m.done != nil && len(m.played) == m.want {
		close(m.done)
		m.done = nil
	}
	m.mu.Unlock()
	return nil
}

// Played returns how many buffers completed playback.
func (m *MockSink) Played() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.played)
}
