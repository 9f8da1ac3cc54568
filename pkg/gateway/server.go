// Package gateway is the HTTP/websocket service in front of the
// upstream providers: vision model, route planner, speech synthesis
// and transcription, voice cloning. The assist client speaks only to
// this service.
package gateway

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/sightpath/go-sightpath/pkg/hub"
	"github.com/sightpath/go-sightpath/pkg/tts"
)

// Config wires the server's providers.
type Config struct {
	Port string

	Vision  VisionProvider
	Routes  RouteProvider
	ASR     ASRProvider
	TTS     tts.Provider
	Cloner  tts.VoiceCloner
	Storage Storage

	Logger *slog.Logger
}

// Server is the gateway HTTP server.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	vision  VisionProvider
	routes  RouteProvider
	asr     ASRProvider
	synth   tts.Provider
	cloner  tts.VoiceCloner
	storage Storage

	overlayHub *hub.Hub
}

// NewServer creates a gateway server from the config.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	storage := cfg.Storage
	if storage == nil {
		storage = NewMemoryStorage("http://localhost:" + cfg.Port)
	}

	s := &Server{
		port:       cfg.Port,
		logger:     logger.With("component", "gateway"),
		vision:     cfg.Vision,
		routes:     cfg.Routes,
		asr:        cfg.ASR,
		synth:      cfg.TTS,
		cloner:     cfg.Cloner,
		storage:    storage,
		overlayHub: hub.New("overlay"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "SightPath Gateway",
		DisableStartupMessage: true,
		BodyLimit:             16 * 1024 * 1024,
	})
	app.Use(cors.New())

	app.Get("/", s.handleRoot)
	app.Get("/files/:name", s.handleFile)

	api := app.Group("/api")
	api.Post("/vision/detect", s.handleDetect)
	api.Post("/nav/route", s.handleRoute)
	api.Post("/speech/tts", s.handleTTS)
	api.Post("/speech/asr", s.handleASR)
	api.Post("/voice/clone", s.handleClone)
	api.Post("/voice/upload", s.handleUpload)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/overlay", websocket.New(s.handleOverlayWS))

	s.app = app
	return s
}

// Start runs the server. It blocks until Shutdown.
func (s *Server) Start() error {
	go s.overlayHub.Run()
	s.logger.Info("gateway listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// OverlayHub returns the overlay broadcast hub.
func (s *Server) OverlayHub() *hub.Hub {
	return s.overlayHub
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok":      true,
		"service": "sightpath-gateway",
		"endpoints": []string{
			"/api/vision/detect",
			"/api/nav/route",
			"/api/speech/tts",
			"/api/speech/asr",
			"/api/voice/clone",
			"/api/voice/upload",
			"/ws/overlay",
		},
	})
}

// handleOverlayWS serves the overlay stream. The assist client connects
// with role=publish and pushes snapshots; every other connection is a
// viewer receiving the broadcast.
func (s *Server) handleOverlayWS(conn *websocket.Conn) {
	if conn.Query("role") == "publish" {
		s.logger.Info("overlay publisher connected")
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				s.logger.Info("overlay publisher disconnected")
				return
			}
			s.overlayHub.Broadcast(msg)
		}
	}
	hub.NewClient(s.overlayHub, conn).Run()
}
