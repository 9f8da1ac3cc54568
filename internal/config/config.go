// Package config provides configuration helpers for sightpath commands.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults for the assist client.
const (
	DefaultGatewayURL = "http://localhost:8000"
	DefaultFPS        = 2
	DefaultPolicy     = "server-first"
)

// GatewayURL returns the gateway base URL from SIGHTPATH_GATEWAY.
// Falls back to the local default if not set.
func GatewayURL() string {
	if url := os.Getenv("SIGHTPATH_GATEWAY"); url != "" {
		return url
	}
	return DefaultGatewayURL
}

// FusionPolicy returns the configured detection policy from SIGHTPATH_POLICY.
func FusionPolicy() string {
	if p := os.Getenv("SIGHTPATH_POLICY"); p != "" {
		return p
	}
	return DefaultPolicy
}

// FPS returns the detection rate from SIGHTPATH_FPS (detections per second).
func FPS() int {
	if v := os.Getenv("SIGHTPATH_FPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultFPS
}

// VoiceID returns the TTS voice from SIGHTPATH_VOICE, or "" for the default voice.
func VoiceID() string {
	return os.Getenv("SIGHTPATH_VOICE")
}

// OllamaHost returns the Ollama server URL for the gateway's vision upstream.
func OllamaHost() string {
	if h := os.Getenv("OLLAMA_HOST"); h != "" {
		return h
	}
	return "http://localhost:11434"
}

// VisionModel returns the vision model name for the gateway.
func VisionModel() string {
	if m := os.Getenv("SIGHTPATH_VISION_MODEL"); m != "" {
		return m
	}
	return "qwen2.5vl"
}

// Required returns the named environment variable.
// Exits with a usage message if not set.
func Required(name string) string {
	v := os.Getenv(name)
	if v == "" {
		fmt.Fprintf(os.Stderr, "Error: %s environment variable is required\n", name)
		os.Exit(1)
	}
	return v
}
