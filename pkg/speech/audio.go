package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultSampleRate is the PCM sample rate used across the speech path.
const DefaultSampleRate = 24000

// Audio formats on the synthesis wire.
const (
	// FormatPCM is raw little-endian PCM16 mono.
	FormatPCM = "pcm_24000"

	// FormatOpus is length-prefixed opus packets (see opusframe.go).
	FormatOpus = "opus"
)

// Audio is a synthesized audio payload.
type Audio struct {
	Data   []byte
	Format string // FormatPCM when empty
}

// PCM returns the payload as PCM16 samples plus the sample rate, decoding
// compressed formats as needed.
func (a *Audio) PCM() ([]byte, int, error) {
	switch a.Format {
	case "", FormatPCM:
		return a.Data, DefaultSampleRate, nil
	case FormatOpus:
		pcm, err := DecodePackets(a.Data, DefaultSampleRate)
		if err != nil {
			return nil, 0, err
		}
		return pcm, DefaultSampleRate, nil
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownFormat, a.Format)
	}
}

// Sink plays PCM16 mono audio. Play blocks until playback completes or
// fails.
type Sink interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// CommandSink plays audio by piping PCM into an external player process.
// The default command is aplay; anything that reads s16le from stdin works.
type CommandSink struct {
	// Command and Args template; "%[1]d" in an arg expands to the sample
	// rate.
	Command string
	Args    []string
}

// NewCommandSink returns a sink backed by aplay.
func NewCommandSink() *CommandSink {
	return &CommandSink{
		Command: "aplay",
		Args:    []string{"-q", "-f", "S16_LE", "-c", "1", "-r", "%[1]d"},
	}
}

// Play pipes the PCM into the player and waits for it to exit.
func (s *CommandSink) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		if strings.Contains(a, "%[1]d") {
			a = fmt.Sprintf(a, sampleRate)
		}
		args[i] = a
	}

	cmd := exec.CommandContext(ctx, s.Command, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	if _, err := stdin.Write(pcm); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("write pcm: %w", err)
	}
	_ = stdin.Close()
	return cmd.Wait()
}
