package gateway

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/sightpath/go-sightpath/internal/httpc"
	"github.com/sightpath/go-sightpath/pkg/detect"
	"github.com/sightpath/go-sightpath/pkg/nav"
	"github.com/sightpath/go-sightpath/pkg/speech"
)

type detectRequest struct {
	Image     string `json:"image"`
	PrevImage string `json:"prev_image"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

func (s *Server) handleDetect(c *fiber.Ctx) error {
	if s.vision == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "vision provider not configured")
	}
	var req detectRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Image == "" || req.Width <= 0 || req.Height <= 0 {
		return errorJSON(c, fiber.StatusBadRequest, "image, width and height are required")
	}

	dets, err := s.vision.Detect(c.Context(), req.Image, req.Width, req.Height)
	if err != nil {
		s.logger.Error("vision detect failed", "error", err)
		return errorJSON(c, fiber.StatusBadGateway, "vision detection failed")
	}
	for i := range dets {
		normalizeDetection(&dets[i], req.Width, req.Height)
	}
	return c.JSON(fiber.Map{"detections": dets})
}

// normalizeDetection clamps the bbox into the canvas and fills defaults
// for fields the model may omit. Origin stays inside the canvas while
// width and height may reach the full dimension.
func normalizeDetection(d *detect.Detection, width, height int) {
	d.BBox[0] = clamp(d.BBox[0], 0, float64(width-1))
	d.BBox[1] = clamp(d.BBox[1], 0, float64(height-1))
	d.BBox[2] = clamp(d.BBox[2], 0, float64(width))
	d.BBox[3] = clamp(d.BBox[3], 0, float64(height))
	if d.Score == 0 {
		d.Score = 0.5
	}
	if d.Label == "" && d.Class == "" {
		d.Label = detect.FallbackLabel
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type routeRequest struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Keyword string  `json:"keyword"`
}

func (s *Server) handleRoute(c *fiber.Ctx) error {
	if s.routes == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "route provider not configured")
	}
	var req routeRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Keyword) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "keyword is required")
	}

	origin := nav.Coordinate{Lat: req.Lat, Lng: req.Lng}
	plan, err := s.routes.PlanRoute(c.Context(), origin, req.Keyword)
	if err != nil {
		if errors.Is(err, ErrNoDestination) {
			return errorJSON(c, fiber.StatusNotFound, "no destination found")
		}
		s.logger.Error("route planning failed", "keyword", req.Keyword, "error", err)
		return errorJSON(c, fiber.StatusBadGateway, "route planning failed")
	}
	return c.JSON(plan)
}

type ttsRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Format string `json:"format"`
}

func (s *Server) handleTTS(c *fiber.Ctx) error {
	if s.synth == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "tts provider not configured")
	}
	var req ttsRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "text is required")
	}

	result, err := s.synth.Synthesize(c.Context(), req.Text, req.Voice)
	if err != nil {
		s.logger.Error("tts synthesis failed", "error", err)
		return errorJSON(c, fiber.StatusBadGateway, "speech synthesis failed")
	}

	audio := result.Audio
	format := string(result.Format.Encoding)
	if req.Format == "opus" {
		packets, err := speech.EncodePackets(result.Audio, result.Format.SampleRate)
		if err != nil {
			s.logger.Error("opus encode failed", "error", err)
			return errorJSON(c, fiber.StatusBadGateway, "opus encoding failed")
		}
		audio = packets
		format = "opus"
	}
	return c.JSON(fiber.Map{
		"audio_base64": base64.StdEncoding.EncodeToString(audio),
		"format":       format,
	})
}

type asrRequest struct {
	AudioBase64 string `json:"audio_base64"`
}

func (s *Server) handleASR(c *fiber.Ctx) error {
	if s.asr == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "asr provider not configured")
	}
	var req asrRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil || len(audio) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "audio_base64 is required")
	}

	text, err := s.asr.Transcribe(c.Context(), audio)
	if err != nil {
		s.logger.Error("transcription failed", "error", err)
		return errorJSON(c, fiber.StatusBadGateway, "transcription failed")
	}
	return c.JSON(fiber.Map{"text": text})
}

type cloneRequest struct {
	AudioURL string `json:"audio_url"`
}

func (s *Server) handleClone(c *fiber.Ctx) error {
	if s.cloner == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "voice cloning not configured")
	}
	var req cloneRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.AudioURL == "" {
		return errorJSON(c, fiber.StatusBadRequest, "audio_url is required")
	}

	name := path.Base(req.AudioURL)
	sample, err := s.storage.Load(c.Context(), name)
	if err != nil {
		sample, err = s.fetchSample(c, req.AudioURL)
		if err != nil {
			s.logger.Error("voice sample fetch failed", "url", req.AudioURL, "error", err)
			return errorJSON(c, fiber.StatusBadGateway, "could not fetch voice sample")
		}
	}

	voiceID, err := s.cloner.CloneVoice(c.Context(), name, sample)
	if err != nil {
		s.logger.Error("voice clone failed", "error", err)
		return errorJSON(c, fiber.StatusBadGateway, "voice cloning failed")
	}
	s.logger.Info("voice cloned", "voice_id", voiceID)
	return c.JSON(fiber.Map{"voice_id": voiceID, "status": "ready"})
}

func (s *Server) fetchSample(c *fiber.Ctx, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(c.Context(), http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpc.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sample fetch returned %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 32<<20))
}

type uploadRequest struct {
	Name        string `json:"name"`
	AudioBase64 string `json:"audio_base64"`
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	var req uploadRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	data, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil || len(data) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "audio_base64 is required")
	}
	name := req.Name
	if name == "" {
		name = uuid.NewString() + ".wav"
	}

	url, err := s.storage.Store(c.Context(), name, data)
	if err != nil {
		s.logger.Error("sample store failed", "name", name, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "could not store audio")
	}
	return c.JSON(fiber.Map{"url": url})
}

func (s *Server) handleFile(c *fiber.Ctx) error {
	name := c.Params("name")
	data, err := s.storage.Load(c.Context(), name)
	if err != nil {
		return errorJSON(c, fiber.StatusNotFound, "file not found")
	}
	c.Set(fiber.HeaderContentType, "application/octet-stream")
	return c.Send(data)
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
