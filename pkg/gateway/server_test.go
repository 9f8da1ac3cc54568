package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sightpath/go-sightpath/pkg/detect"
	"github.com/sightpath/go-sightpath/pkg/nav"
	"github.com/sightpath/go-sightpath/pkg/tts"
)

func postJSON(t *testing.T, s *Server, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestDetectHandlerClampsAndDefaults(t *testing.T) {
	vision := &MockVision{
		DetectFunc: func(ctx context.Context, image string, width, height int) ([]detect.Detection, error) {
			return []detect.Detection{
				{BBox: detect.BBox{-10, 500, 700, 800}, Class: "person"},
				{BBox: detect.BBox{10, 20, 30, 40}},
			}, nil
		},
	}
	s := NewServer(Config{Port: "0", Vision: vision})

	resp := postJSON(t, s, "/api/vision/detect", detectRequest{
		Image: "data:image/jpeg;base64,xxx", Width: 640, Height: 480,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out struct {
		Detections []detect.Detection `json:"detections"`
	}
	decodeBody(t, resp, &out)
	if len(out.Detections) != 2 {
		t.Fatalf("got %d detections, want 2", len(out.Detections))
	}

	d := out.Detections[0]
	want := detect.BBox{0, 479, 640, 480}
	if d.BBox != want {
		t.Errorf("bbox = %v, want %v", d.BBox, want)
	}
	if d.Score != 0.5 {
		t.Errorf("score = %v, want default 0.5", d.Score)
	}
	if d.DisplayName() != "person" {
		t.Errorf("display name = %q, want person", d.DisplayName())
	}
	if out.Detections[1].DisplayName() != detect.FallbackLabel {
		t.Errorf("unlabeled detection spoke as %q, want %q", out.Detections[1].DisplayName(), detect.FallbackLabel)
	}
}

func TestDetectHandlerValidation(t *testing.T) {
	s := NewServer(Config{Port: "0", Vision: &MockVision{}})

	tests := []struct {
		name string
		req  detectRequest
	}{
		{"missing image", detectRequest{Width: 640, Height: 480}},
		{"zero width", detectRequest{Image: "data:...", Height: 480}},
		{"zero height", detectRequest{Image: "data:...", Width: 640}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, s, "/api/vision/detect", tt.req)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestRouteHandlerNotFound(t *testing.T) {
	routes := &MockRoutes{Err: ErrNoDestination}
	s := NewServer(Config{Port: "0", Routes: routes})

	resp := postJSON(t, s, "/api/nav/route", routeRequest{Lat: 31.2, Lng: 121.5, Keyword: "nowhere"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var out struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &out)
	if out.Error != "no destination found" {
		t.Errorf("error = %q, want %q", out.Error, "no destination found")
	}
}

func TestRouteHandlerSuccess(t *testing.T) {
	routes := &MockRoutes{Plan: &RoutePlan{
		Destination: nav.Destination{
			Name:     "Corner Market",
			Location: nav.Coordinate{Lat: 31.21, Lng: 121.51},
		},
		Steps: []RouteStep{
			{Instruction: "Head north", Polyline: "121.51,31.20;121.51,31.21"},
		},
	}}
	s := NewServer(Config{Port: "0", Routes: routes})

	resp := postJSON(t, s, "/api/nav/route", routeRequest{Lat: 31.2, Lng: 121.5, Keyword: "market"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out RoutePlan
	decodeBody(t, resp, &out)
	if out.Destination.Name != "Corner Market" {
		t.Errorf("destination = %q, want Corner Market", out.Destination.Name)
	}
	if len(out.Steps) != 1 || out.Steps[0].Instruction != "Head north" {
		t.Errorf("unexpected steps: %+v", out.Steps)
	}
}

func TestRouteHandlerRequiresKeyword(t *testing.T) {
	s := NewServer(Config{Port: "0", Routes: &MockRoutes{}})
	resp := postJSON(t, s, "/api/nav/route", routeRequest{Lat: 31.2, Lng: 121.5})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTTSHandler(t *testing.T) {
	mock := tts.NewMock()
	s := NewServer(Config{Port: "0", TTS: mock})

	resp := postJSON(t, s, "/api/speech/tts", ttsRequest{Text: "person ahead", Voice: "v1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		AudioBase64 string `json:"audio_base64"`
		Format      string `json:"format"`
	}
	decodeBody(t, resp, &out)
	if out.AudioBase64 == "" {
		t.Error("expected audio in response")
	}
	if mock.CallCount("Synthesize") != 1 {
		t.Errorf("synth calls = %d, want 1", mock.CallCount("Synthesize"))
	}
}

func TestTTSHandlerEmptyText(t *testing.T) {
	s := NewServer(Config{Port: "0", TTS: tts.NewMock()})
	resp := postJSON(t, s, "/api/speech/tts", ttsRequest{Text: "   "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestASRHandler(t *testing.T) {
	asr := &MockASR{Text: "coffee shop"}
	s := NewServer(Config{Port: "0", ASR: asr})

	resp := postJSON(t, s, "/api/speech/asr", asrRequest{
		AudioBase64: base64.StdEncoding.EncodeToString([]byte("wav-bytes")),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Text string `json:"text"`
	}
	decodeBody(t, resp, &out)
	if out.Text != "coffee shop" {
		t.Errorf("text = %q, want coffee shop", out.Text)
	}
}

func TestUploadThenCloneFromStorage(t *testing.T) {
	cloner := tts.NewMock()
	s := NewServer(Config{Port: "0", Cloner: cloner})

	sample := []byte("pcm-sample")
	resp := postJSON(t, s, "/api/voice/upload", uploadRequest{
		Name:        "sample.wav",
		AudioBase64: base64.StdEncoding.EncodeToString(sample),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d, want 200", resp.StatusCode)
	}
	var up struct {
		URL string `json:"url"`
	}
	decodeBody(t, resp, &up)
	if up.URL == "" {
		t.Fatal("upload returned no URL")
	}

	resp = postJSON(t, s, "/api/voice/clone", cloneRequest{AudioURL: up.URL})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clone status = %d, want 200", resp.StatusCode)
	}
	var cl struct {
		VoiceID string `json:"voice_id"`
		Status  string `json:"status"`
	}
	decodeBody(t, resp, &cl)
	if cl.VoiceID == "" {
		t.Error("expected a voice id")
	}
	if cl.Status != "ready" {
		t.Errorf("status = %q, want ready", cl.Status)
	}
}

func TestFileHandler(t *testing.T) {
	s := NewServer(Config{Port: "0"})
	if _, err := s.storage.Store(context.Background(), "a.wav", []byte("abc")); err != nil {
		t.Fatalf("store: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/files/a.wav", nil)
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/files/missing.wav", nil)
	resp2, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp2.StatusCode)
	}
}
