package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/sightpath/go-sightpath/pkg/detect"
	"github.com/sightpath/go-sightpath/pkg/nav"
)

// ErrNoDestination indicates no place matched the spoken keyword. The
// route handler maps it to 404 with the distinguished error body.
var ErrNoDestination = errors.New("gateway: no destination found")

// VisionProvider runs object detection on one frame. The image is a
// JPEG data URL; bboxes come back in the frame's pixel space.
type VisionProvider interface {
	Detect(ctx context.Context, image string, width, height int) ([]detect.Detection, error)
}

// RouteStep is one leg of a planned walk, with its polyline still in
// wire form.
type RouteStep struct {
	Instruction string `json:"instruction"`
	Polyline    string `json:"polyline"`
}

// RoutePlan is a resolved destination plus the walking steps to it.
type RoutePlan struct {
	Destination nav.Destination `json:"destination"`
	Steps       []RouteStep     `json:"steps"`
}

// RouteProvider resolves a keyword near an origin into a walking route.
type RouteProvider interface {
	PlanRoute(ctx context.Context, origin nav.Coordinate, keyword string) (*RoutePlan, error)
}

// ASRProvider transcribes recorded audio to text.
type ASRProvider interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Storage persists uploaded voice samples and serves them back by URL.
type Storage interface {
	Store(ctx context.Context, name string, data []byte) (url string, err error)
	Load(ctx context.Context, name string) ([]byte, error)
}

// MockVision implements VisionProvider for testing.
type MockVision struct {
	DetectFunc func(ctx context.Context, image string, width, height int) ([]detect.Detection, error)

	mu    sync.Mutex
	calls int
}

func (m *MockVision) Detect(ctx context.Context, image string, width, height int) ([]detect.Detection, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, image, width, height)
	}
	return nil, nil
}

func (m *MockVision) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockRoutes implements RouteProvider for testing.
type MockRoutes struct {
	Plan *RoutePlan
	Err  error
}

func (m *MockRoutes) PlanRoute(ctx context.Context, origin nav.Coordinate, keyword string) (*RoutePlan, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Plan, nil
}

// MockASR implements ASRProvider for testing.
type MockASR struct {
	Text string
	Err  error
}

func (m *MockASR) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return m.Text, m.Err
}

// MemoryStorage is an in-process Storage for tests and single-node
// deployments.
type MemoryStorage struct {
	baseURL string

	mu    sync.Mutex
	files map[string][]byte
}

// NewMemoryStorage creates a storage that serves files under
// baseURL/files/.
func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{baseURL: baseURL, files: make(map[string][]byte)}
}

func (s *MemoryStorage) Store(ctx context.Context, name string, data []byte) (string, error) {
	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()
	return s.baseURL + "/files/" + name, nil
}

func (s *MemoryStorage) Load(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, errors.New("gateway: file not found")
	}
	return data, nil
}
