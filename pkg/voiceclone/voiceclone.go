// Package voiceclone creates custom synthesis voices from a short
// recording of the user's own voice. The recording is captured through
// the shared recorder guard so it can never overlap a navigation
// destination capture.
package voiceclone

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sightpath/go-sightpath/internal/httpc"
	"github.com/sightpath/go-sightpath/pkg/record"
)

// ErrCloneFailed indicates the provider rejected the voice sample.
var ErrCloneFailed = errors.New("voiceclone: clone failed")

// Voice is a cloned synthesis voice.
type Voice struct {
	ID     string `json:"voice_id"`
	Status string `json:"status"`
}

// Ready reports whether the voice can be used for synthesis.
func (v Voice) Ready() bool { return v.Status == "ready" || v.Status == "ok" }

// Cloner creates a voice from an uploaded audio sample.
type Cloner interface {
	Clone(ctx context.Context, audioURL string) (Voice, error)
}

// Uploader stores a raw recording and returns a URL the clone provider
// can fetch it from.
type Uploader interface {
	Upload(ctx context.Context, name string, audio []byte) (string, error)
}

// Client calls the gateway's voice endpoints. It implements Cloner and
// Uploader.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger.With("component", "voiceclone") }
}

// NewClient creates a voice clone client for the gateway at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  httpc.NewClient(60 * time.Second),
		logger:  slog.Default().With("component", "voiceclone"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cloneRequest struct {
	AudioURL string `json:"audio_url"`
}

// Clone asks the provider to build a voice from the uploaded sample.
func (c *Client) Clone(ctx context.Context, audioURL string) (Voice, error) {
	var v Voice
	if err := c.post(ctx, "/api/voice/clone", cloneRequest{AudioURL: audioURL}, &v); err != nil {
		return Voice{}, err
	}
	if v.ID == "" {
		return Voice{}, ErrCloneFailed
	}
	c.logger.Info("voice cloned", "voice_id", v.ID, "status", v.Status)
	return v, nil
}

type uploadRequest struct {
	Name        string `json:"name"`
	AudioBase64 string `json:"audio_base64"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload stores the recording through the gateway and returns its URL.
func (c *Client) Upload(ctx context.Context, name string, audio []byte) (string, error) {
	var out uploadResponse
	req := uploadRequest{Name: name, AudioBase64: base64.StdEncoding.EncodeToString(audio)}
	if err := c.post(ctx, "/api/voice/upload", req, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("voiceclone: upload returned no URL")
	}
	return out.URL, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("voiceclone: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("voiceclone: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("voiceclone: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("voiceclone: %s returned %d: %s", path, resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Recorder drives the record-upload-clone flow with a single gesture
// toggle, mirroring how navigation capture works.
type Recorder struct {
	guard    *record.Guard
	uploader Uploader
	cloner   Cloner
	logger   *slog.Logger
}

// NewRecorder wires the flow from its collaborators.
func NewRecorder(guard *record.Guard, up Uploader, cl Cloner) *Recorder {
	return &Recorder{
		guard:    guard,
		uploader: up,
		cloner:   cl,
		logger:   slog.Default().With("component", "voiceclone.recorder"),
	}
}

// Start begins capturing the voice sample. Returns record.ErrBusy when
// any capture, including navigation's, is already in flight.
func (r *Recorder) Start(ctx context.Context) error {
	return r.guard.Start(ctx)
}

// Finish stops the capture, uploads the sample and creates the voice.
func (r *Recorder) Finish(ctx context.Context) (Voice, error) {
	audio, err := r.guard.Stop()
	if err != nil {
		return Voice{}, fmt.Errorf("voiceclone: stop capture: %w", err)
	}
	if len(audio) == 0 {
		return Voice{}, errors.New("voiceclone: empty recording")
	}

	name := fmt.Sprintf("voice-sample-%s.wav", uuid.NewString())
	url, err := r.uploader.Upload(ctx, name, audio)
	if err != nil {
		return Voice{}, err
	}
	r.logger.Info("voice sample uploaded", "name", name)

	return r.cloner.Clone(ctx, url)
}
