package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider and VoiceCloner for testing.
type Mock struct {
	// SynthesizeFunc overrides the default behavior of returning short
	// silent PCM.
	SynthesizeFunc func(ctx context.Context, text, voiceID string) (*AudioResult, error)

	// CloneFunc overrides the default behavior of returning "mock-voice".
	CloneFunc func(ctx context.Context, name string, sample []byte) (string, error)

	// HealthErr is returned by Health.
	HealthErr error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one provider invocation.
type MockCall struct {
	Method  string
	Text    string
	VoiceID string
	Time    time.Time
}

// NewMock creates a mock provider.
func NewMock() *Mock {
	return &Mock{}
}

// WithError creates a mock whose Synthesize always fails.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text, voiceID string) (*AudioResult, error) {
			return nil, err
		},
	}
}

// Synthesize records the call and delegates to SynthesizeFunc.
func (m *Mock) Synthesize(ctx context.Context, text, voiceID string) (*AudioResult, error) {
	m.recordCall("Synthesize", text, voiceID)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, voiceID)
	}
	return &AudioResult{
		Audio: make([]byte, 960),
		Format: AudioFormat{
			Encoding:   EncodingPCM24,
			SampleRate: 24000,
			Channels:   1,
			BitDepth:   16,
		},
		CharCount: len(text),
	}, nil
}

// CloneVoice records the call and delegates to CloneFunc.
func (m *Mock) CloneVoice(ctx context.Context, name string, sample []byte) (string, error) {
	m.recordCall("CloneVoice", name, "")
	if m.CloneFunc != nil {
		return m.CloneFunc(ctx, name, sample)
	}
	return "mock-voice", nil
}

// Health returns HealthErr.
func (m *Mock) Health(ctx context.Context) error {
	m.recordCall("Health", "", "")
	return m.HealthErr
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

func (m *Mock) recordCall(method, text, voiceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:  method,
		Text:    text,
		VoiceID: voiceID,
		Time:    time.Now(),
	})
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of calls to the given method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Verify interfaces at compile time.
var (
	_ Provider    = (*Mock)(nil)
	_ VoiceCloner = (*Mock)(nil)
)
