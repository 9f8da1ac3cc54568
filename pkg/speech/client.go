package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sightpath/go-sightpath/internal/httpc"
)

const defaultClientTimeout = 30 * time.Second

// Synthesizer converts text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (*Audio, error)
}

// Recognizer transcribes captured audio to text.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte) (string, error)
}

// Client talks to the gateway's speech endpoints. It implements both
// Synthesizer and Recognizer.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.client = c }
}

// WithClientLogger sets the structured logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) { cl.logger = logger.With("component", "speech.client") }
}

// NewClient creates a speech service client for the given gateway base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  httpc.NewClient(defaultClientTimeout),
		logger:  slog.Default().With("component", "speech.client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

type ttsResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Format      string `json:"format,omitempty"`
}

// Synthesize requests synthesized audio for the text in the given voice.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) (*Audio, error) {
	var out ttsResponse
	if err := c.post(ctx, "/api/speech/tts", ttsRequest{Text: text, Voice: voiceID}, &out); err != nil {
		return nil, err
	}
	if out.AudioBase64 == "" {
		return nil, ErrNoAudio
	}
	data, err := base64.StdEncoding.DecodeString(out.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return &Audio{Data: data, Format: out.Format}, nil
}

type asrRequest struct {
	AudioBase64 string `json:"audio_base64"`
}

type asrResponse struct {
	Text string `json:"text"`
}

// Recognize transcribes the captured audio. An empty transcription is not an
// error here; callers decide how to handle it.
func (c *Client) Recognize(ctx context.Context, audio []byte) (string, error) {
	var out asrResponse
	req := asrRequest{AudioBase64: base64.StdEncoding.EncodeToString(audio)}
	if err := c.post(ctx, "/api/speech/asr", req, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Message: string(msg), Endpoint: path}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
