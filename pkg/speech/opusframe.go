package speech

import (
	"encoding/binary"
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// Opus framing used on the synthesis wire when format is "opus": a sequence
// of opus packets, each preceded by a 2-byte big-endian length. 20ms frames
// at the session sample rate.

const opusFrameSamples = DefaultSampleRate / 50 // 20ms

// EncodePackets compresses PCM16 mono into length-prefixed opus packets.
// A trailing partial frame is zero-padded.
func EncodePackets(pcm []byte, sampleRate int) ([]byte, error) {
	enc, err := opus.NewEncoder(sampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}

	frameSamples := sampleRate / 50
	samples := make([]int16, 0, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		samples = append(samples, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}

	var out []byte
	buf := make([]byte, 4000)
	for off := 0; off < len(samples); off += frameSamples {
		frame := make([]int16, frameSamples)
		copy(frame, samples[off:min(off+frameSamples, len(samples))])
		n, err := enc.Encode(frame, buf)
		if err != nil {
			return nil, fmt.Errorf("opus encode: %w", err)
		}
		out = binary.BigEndian.AppendUint16(out, uint16(n))
		out = append(out, buf[:n]...)
	}
	return out, nil
}

// DecodePackets expands length-prefixed opus packets back to PCM16 mono.
// A truncated trailing packet is an error; the queue drops the item.
func DecodePackets(data []byte, sampleRate int) ([]byte, error) {
	dec, err := opus.NewDecoder(sampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}

	frame := make([]int16, opusFrameSamples*6) // up to 120ms per packet
	var pcm []byte
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, fmt.Errorf("truncated opus packet header")
		}
		n := int(binary.BigEndian.Uint16(data))
		data = data[2:]
		if n > len(data) {
			return nil, fmt.Errorf("truncated opus packet: want %d bytes, have %d", n, len(data))
		}
		written, err := dec.Decode(data[:n], frame)
		if err != nil {
			return nil, fmt.Errorf("opus decode: %w", err)
		}
		data = data[n:]
		for _, s := range frame[:written] {
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(s))
		}
	}
	return pcm, nil
}
