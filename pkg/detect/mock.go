package detect

import (
	"context"
	"sync"
)

// Mock implements Detector for testing.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	// If nil, returns no detections.
	DetectFunc func(ctx context.Context, frame Frame) ([]Detection, error)

	mu    sync.Mutex
	calls int
}

// NewMock creates a mock detector returning the given detections.
func NewMock(dets ...Detection) *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, frame Frame) ([]Detection, error) {
			return dets, nil
		},
	}
}

// MockError creates a mock detector that always fails.
func MockError(err error) *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, frame Frame) ([]Detection, error) {
			return nil, err
		},
	}
}

// Detect calls DetectFunc and records the call.
func (m *Mock) Detect(ctx context.Context, frame Frame) ([]Detection, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, frame)
	}
	return nil, nil
}

// Calls returns how many times Detect was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
