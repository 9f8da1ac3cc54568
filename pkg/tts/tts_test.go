package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestElevenLabsSynthesize(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte("pcm-audio-bytes"))
	}))
	defer srv.Close()

	p, err := NewElevenLabs(
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL),
		WithVoice("default-voice"),
	)
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}
	defer p.Close()

	tests := []struct {
		name      string
		voiceID   string
		wantVoice string
	}{
		{"request voice wins", "cloned-voice", "cloned-voice"},
		{"empty voice falls back to default", "", "default-voice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Synthesize(context.Background(), "hello", tt.voiceID)
			if err != nil {
				t.Fatalf("Synthesize: %v", err)
			}
			if !strings.Contains(gotPath, tt.wantVoice) {
				t.Errorf("request path %q does not name voice %q", gotPath, tt.wantVoice)
			}
			if string(result.Audio) != "pcm-audio-bytes" {
				t.Errorf("unexpected audio %q", result.Audio)
			}
			if gotPayload["text"] != "hello" {
				t.Errorf("payload text = %v", gotPayload["text"])
			}
		})
	}
}

func TestElevenLabsNoVoice(t *testing.T) {
	p, err := NewElevenLabs(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "hello", ""); !errors.Is(err, ErrNoVoice) {
		t.Errorf("error = %v, want ErrNoVoice", err)
	}
}

func TestElevenLabsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"message":"invalid api key","status":"unauthorized"}}`))
	}))
	defer srv.Close()

	p, _ := NewElevenLabs(WithAPIKey("bad"), WithBaseURL(srv.URL), WithVoice("v"))
	_, err := p.Synthesize(context.Background(), "hello", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.IsUnauthorized() {
		t.Errorf("IsUnauthorized() = false for status %d", apiErr.StatusCode)
	}
	if apiErr.Message != "invalid api key" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestElevenLabsCloneVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices/add" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("name"); got != "my voice" {
			t.Errorf("name = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"voice_id": "new-voice-id"})
	}))
	defer srv.Close()

	p, _ := NewElevenLabs(WithAPIKey("key"), WithBaseURL(srv.URL))
	id, err := p.CloneVoice(context.Background(), "my voice", []byte("wav-sample"))
	if err != nil {
		t.Fatalf("CloneVoice: %v", err)
	}
	if id != "new-voice-id" {
		t.Errorf("voice ID = %q", id)
	}
}

func TestChainFallsBack(t *testing.T) {
	failing := WithError(errors.New("upstream down"))
	working := NewMock()

	chain, err := NewChain(failing, working)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	result, err := chain.Synthesize(context.Background(), "hello", "v")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(result.Audio) == 0 {
		t.Error("empty audio from fallback provider")
	}
	if working.CallCount("Synthesize") != 1 {
		t.Errorf("fallback called %d times, want 1", working.CallCount("Synthesize"))
	}
}

func TestChainAllFail(t *testing.T) {
	chain, _ := NewChain(WithError(errors.New("a")), WithError(errors.New("b")))
	_, err := chain.Synthesize(context.Background(), "hello", "v")
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Errorf("error = %v, want ErrAllProvidersFailed", err)
	}
}
