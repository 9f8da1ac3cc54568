// Package tts provides a unified interface for upstream text-to-speech
// providers used by the gateway. Providers are selected per request by
// voice ID, so cloned user voices and stock voices go through the same
// path.
//
// Example usage:
//
//	provider, _ := tts.NewElevenLabs(
//	    tts.WithAPIKey(os.Getenv("ELEVENLABS_API_KEY")),
//	    tts.WithVoice("default-voice-id"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Hello world", "")
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface. An empty voiceID selects
// the provider's configured default voice.
type Provider interface {
	// Synthesize converts text to audio in the given voice, returning
	// the complete audio buffer.
	Synthesize(ctx context.Context, text, voiceID string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// VoiceCloner is implemented by providers that can build a new voice
// from a recorded sample.
type VoiceCloner interface {
	// CloneVoice uploads the audio sample and returns the new voice ID.
	CloneVoice(ctx context.Context, name string, sample []byte) (string, error)
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// Duration is the estimated playback duration.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time to first byte in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding represents audio encoding types. These match ElevenLabs
// output format options.
type Encoding string

const (
	// EncodingPCM24 is 24kHz mono PCM16, the pipeline's native rate.
	EncodingPCM24 Encoding = "pcm_24000"

	// EncodingPCM16 is 16kHz mono PCM16.
	EncodingPCM16 Encoding = "pcm_16000"

	// EncodingMP3 is MP3 128kbps.
	EncodingMP3 Encoding = "mp3_44100_128"
)

// SampleRateFromEncoding extracts the sample rate from an encoding.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM24:
		return 24000
	case EncodingMP3:
		return 44100
	default:
		return 24000
	}
}

// VoiceSettings controls voice characteristics for providers that
// support them.
type VoiceSettings struct {
	// Stability controls voice consistency (0.0-1.0). Lower values are
	// more expressive, higher more consistent.
	Stability float64

	// SimilarityBoost controls how closely the voice matches the
	// original sample (0.0-1.0).
	SimilarityBoost float64

	// Style controls style exaggeration (0.0-1.0).
	Style float64

	// SpeakerBoost enhances speaker clarity in noisy environments.
	SpeakerBoost bool
}

// DefaultVoiceSettings returns sensible defaults for voice synthesis.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.0,
		SpeakerBoost:    true,
	}
}
