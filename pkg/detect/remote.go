package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/sightpath/go-sightpath/internal/httpc"
)

const (
	// defaultMaxUploadWidth bounds the frame size sent to the detect
	// service. Full camera frames are downscaled before upload.
	defaultMaxUploadWidth = 1280

	defaultRemoteTimeout = 30 * time.Second
)

// detectRequest is the Detect service contract.
type detectRequest struct {
	Image     string `json:"image"`
	PrevImage string `json:"prev_image,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type detectResponse struct {
	Detections []Detection `json:"detections"`
}

// Remote calls the server-side detect endpoint. It remembers the previously
// submitted frame and passes it along so the server can infer motion.
type Remote struct {
	baseURL        string
	client         *http.Client
	logger         *slog.Logger
	maxUploadWidth int

	mu        sync.Mutex
	prevImage string // data URL of the last successfully analyzed frame
}

// RemoteOption configures a Remote detector.
type RemoteOption func(*Remote)

// WithRemoteClient overrides the HTTP client.
func WithRemoteClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.client = c }
}

// WithRemoteLogger sets the structured logger.
func WithRemoteLogger(logger *slog.Logger) RemoteOption {
	return func(r *Remote) { r.logger = logger.With("component", "detect.remote") }
}

// WithMaxUploadWidth bounds the uploaded frame width in pixels.
func WithMaxUploadWidth(w int) RemoteOption {
	return func(r *Remote) { r.maxUploadWidth = w }
}

// NewRemote creates a detector backed by the gateway's detect endpoint.
func NewRemote(baseURL string, opts ...RemoteOption) *Remote {
	r := &Remote{
		baseURL:        baseURL,
		client:         httpc.NewClient(defaultRemoteTimeout),
		logger:         slog.Default().With("component", "detect.remote"),
		maxUploadWidth: defaultMaxUploadWidth,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Detect submits the frame and returns the server's detections.
// Bboxes come back in the frame's canvas coordinate space.
func (r *Remote) Detect(ctx context.Context, frame Frame) ([]Detection, error) {
	dataURL, err := r.encodeFrame(frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	r.mu.Lock()
	prev := r.prevImage
	r.mu.Unlock()

	body, err := json.Marshal(detectRequest{
		Image:     dataURL,
		PrevImage: prev,
		Width:     frame.Width,
		Height:    frame.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/vision/detect", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detect service status %d: %s", resp.StatusCode, msg)
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Keep the frame as motion context for the next request only after a
	// successful round trip.
	r.mu.Lock()
	r.prevImage = dataURL
	r.mu.Unlock()

	r.logger.Debug("server detect ok", "detections", len(out.Detections))
	return out.Detections, nil
}

// encodeFrame returns the frame as a JPEG data URL, downscaled when wider
// than maxUploadWidth.
func (r *Remote) encodeFrame(frame Frame) (string, error) {
	jpeg := frame.JPEG
	if frame.Width > r.maxUploadWidth {
		img, err := imaging.Decode(bytes.NewReader(jpeg))
		if err != nil {
			return "", fmt.Errorf("decode jpeg: %w", err)
		}
		scaled := imaging.Resize(img, r.maxUploadWidth, 0, imaging.Lanczos)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, scaled, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
			return "", fmt.Errorf("encode jpeg: %w", err)
		}
		jpeg = buf.Bytes()
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg), nil
}
