package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sightpath/go-sightpath/internal/config"
	applog "github.com/sightpath/go-sightpath/internal/log"
	"github.com/sightpath/go-sightpath/pkg/gateway"
	"github.com/sightpath/go-sightpath/pkg/tts"
)

func main() {
	port := flag.String("port", "8000", "Listen port")
	publicURL := flag.String("public-url", "", "Base URL clients use to reach this server (defaults to http://localhost:<port>)")
	whisperURL := flag.String("whisper", "https://api.openai.com/v1", "OpenAI-compatible transcription base URL")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	applog.Init(*logLevel)

	fmt.Println("🛰  SightPath Gateway")
	fmt.Printf("   Port:   %s\n", *port)
	fmt.Printf("   Vision: %s @ %s\n", config.VisionModel(), config.OllamaHost())
	fmt.Println()

	cfg := gateway.Config{Port: *port}

	vision, err := gateway.NewOllamaVision(config.OllamaHost(), config.VisionModel())
	if err != nil {
		log.Fatalf("Vision provider init failed: %v", err)
	}
	cfg.Vision = vision

	if key := os.Getenv("AMAP_API_KEY"); key != "" {
		cfg.Routes = gateway.NewAMapRoutes(key)
	} else {
		fmt.Println("⚠️  AMAP_API_KEY not set; navigation disabled")
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.ASR = gateway.NewWhisperASR(*whisperURL, key)
	} else {
		fmt.Println("⚠️  OPENAI_API_KEY not set; transcription disabled")
	}

	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		eleven, err := tts.NewElevenLabs(tts.WithAPIKey(key))
		if err != nil {
			log.Fatalf("TTS provider init failed: %v", err)
		}
		chain, err := tts.NewChain(eleven)
		if err != nil {
			log.Fatalf("TTS chain init failed: %v", err)
		}
		cfg.TTS = chain
		cfg.Cloner = eleven
	} else {
		fmt.Println("⚠️  ELEVENLABS_API_KEY not set; speech synthesis disabled")
	}

	base := *publicURL
	if base == "" {
		base = "http://localhost:" + *port
	}
	cfg.Storage = gateway.NewMemoryStorage(base)

	server := gateway.NewServer(cfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Shutting down...")
		if err := server.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	fmt.Println("👋 Goodbye!")
}
