package camera

import (
	"bytes"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// Decoder turns accumulated H264 NAL units into JPEG frames by piping
// them through ffmpeg. Decoding is rate limited so the ingest goroutine
// never spends more time decoding than the pipeline can consume.
type Decoder struct {
	minInterval time.Duration

	mu         sync.Mutex
	lastDecode time.Time
}

// NewDecoder creates a decoder that decodes at most once per interval.
func NewDecoder(interval time.Duration) *Decoder {
	return &Decoder{minInterval: interval}
}

// DecodeNAL decodes NAL data to one JPEG frame. It returns (nil, nil)
// when rate limited or when the data does not yet contain a decodable
// frame; callers keep accumulating and try again.
func (d *Decoder) DecodeNAL(nalData []byte) ([]byte, error) {
	if len(nalData) < 100 {
		return nil, nil
	}

	d.mu.Lock()
	if time.Since(d.lastDecode) < d.minInterval {
		d.mu.Unlock()
		return nil, nil
	}
	d.lastDecode = time.Now()
	d.mu.Unlock()

	cmd := exec.Command("ffmpeg",
		"-f", "h264",
		"-i", "pipe:0",
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("camera: ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("camera: start ffmpeg: %w", err)
	}

	go func() {
		stdin.Write(nalData)
		stdin.Close()
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			// Not enough data for a complete frame yet.
			return nil, nil
		}
	case <-time.After(200 * time.Millisecond):
		cmd.Process.Kill()
		<-done
		return nil, nil
	}

	jpegData := stdout.Bytes()
	if len(jpegData) < 1000 {
		return nil, nil
	}
	return jpegData, nil
}
