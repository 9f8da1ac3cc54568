package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sightpath/go-sightpath/internal/httpc"
)

// WhisperASR transcribes audio through an OpenAI-compatible
// transcription endpoint (OpenAI itself or a local whisper server).
type WhisperASR struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// WhisperOption configures WhisperASR.
type WhisperOption func(*WhisperASR)

// WithWhisperModel overrides the transcription model.
func WithWhisperModel(model string) WhisperOption {
	return func(w *WhisperASR) { w.model = model }
}

// WithWhisperClient overrides the HTTP client.
func WithWhisperClient(c *http.Client) WhisperOption {
	return func(w *WhisperASR) { w.client = c }
}

// NewWhisperASR creates a transcription provider.
func NewWhisperASR(baseURL, apiKey string, opts ...WhisperOption) *WhisperASR {
	w := &WhisperASR{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   "whisper-1",
		client:  httpc.NewClient(60 * time.Second),
		logger:  slog.Default().With("component", "gateway.whisper"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Transcribe posts the WAV audio and returns the recognized text.
func (w *WhisperASR) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("model", w.model); err != nil {
		return "", fmt.Errorf("gateway: build transcription request: %w", err)
	}
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("gateway: build transcription request: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("gateway: build transcription request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("gateway: build transcription request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("gateway: create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway: transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gateway: transcription returned %d: %s", resp.StatusCode, msg)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gateway: decode transcription: %w", err)
	}
	w.logger.Debug("transcribed audio", "chars", len(out.Text))
	return out.Text, nil
}
