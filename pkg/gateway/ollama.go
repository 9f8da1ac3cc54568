package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/sightpath/go-sightpath/pkg/detect"
)

const visionPrompt = `You are a vision assistant for a blind user. Detect the main ` +
	`objects in the image and return pixel-space bounding boxes. Reply with JSON only, ` +
	`shaped exactly like {"detections":[{"label":"name","class":"coco class","bbox":[x,y,w,h],"score":0.0}]}. ` +
	`Coordinates are pixels on a canvas of width=%d, height=%d. Keep every bbox inside ` +
	`the image and every score between 0 and 1.`

// OllamaVision runs detection through a local vision model served by
// Ollama.
type OllamaVision struct {
	client *api.Client
	model  string
	logger *slog.Logger
}

// NewOllamaVision creates a provider for the Ollama instance at host.
func NewOllamaVision(host, model string) (*OllamaVision, error) {
	parsed, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid ollama host: %w", err)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &OllamaVision{
		client: api.NewClient(base, http.DefaultClient),
		model:  model,
		logger: slog.Default().With("component", "gateway.ollama"),
	}, nil
}

// Detect sends the frame to the vision model and parses its detection
// JSON. Model output is treated as hostile: fences, comments and stray
// prose are stripped before parsing, and unparseable replies collapse
// to an empty result rather than an error.
func (o *OllamaVision) Detect(ctx context.Context, image string, width, height int) ([]detect.Detection, error) {
	imgBytes, err := decodeDataURL(image)
	if err != nil {
		return nil, err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
	}

	stream := false
	req := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: fmt.Sprintf(visionPrompt, width, height),
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream: &stream,
	}

	var content string
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content = resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: ollama chat: %w", err)
	}

	dets := parseDetections(content)
	o.logger.Debug("vision model replied", "detections", len(dets))
	return dets, nil
}

// decodeDataURL strips the data URL prefix and decodes the base64
// payload. Plain base64 without a prefix is accepted too.
func decodeDataURL(image string) ([]byte, error) {
	payload := image
	if i := strings.Index(image, ","); i >= 0 && strings.HasPrefix(image, "data:") {
		payload = image[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: decode image: %w", err)
	}
	return raw, nil
}

type modelDetections struct {
	Detections []detect.Detection `json:"detections"`
}

// parseDetections extracts the detection list from the model reply.
func parseDetections(raw string) []detect.Detection {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil
	}

	var out modelDetections
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out.Detections
}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments and trailing commas,
// then keeps only the outermost object.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
