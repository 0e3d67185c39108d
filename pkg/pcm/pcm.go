// Package pcm converts between platform float samples and the wire's
// signed 16-bit little-endian PCM, and between binary payloads and their
// base64 transport encoding.
//
// All functions are pure and stateless; the only errors are malformed-input
// errors, surfaced as *CodecError.
package pcm

import (
	"encoding/base64"
	"math"
	"time"
)

// EncodeFloat32 converts float samples to PCM16 little-endian bytes.
// Each sample is clamped to [-1, 1] and rounded to the nearest 16-bit
// signed integer.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		s := int16(math.Round(float64(f) * 32767))
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// DecodeToFloat32 converts PCM16 little-endian bytes back to float samples
// in [-1, 1]. Returns a CodecError if the byte length is odd.
func DecodeToFloat32(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, newCodecError("decode", "truncated PCM16 payload (odd byte length)", nil)
	}
	out := make([]float32, len(data)/2)
	for i := range out {
		s := int16(data[i*2]) | int16(data[i*2+1])<<8
		out[i] = float32(s) / 32767
	}
	return out, nil
}

// ToWireText encodes binary media for transport.
func ToWireText(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// FromWireText decodes transport text back to binary media.
// Returns a CodecError on malformed input.
func FromWireText(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, newCodecError("wire-text", "invalid base64 payload", err)
	}
	return data, nil
}

// Buffer is a decoded, playable block of mono audio.
type Buffer struct {
	// Samples are PCM16 samples at Rate.
	Samples []int16

	// Rate is the sample rate in Hz.
	Rate int
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.Rate) * float64(time.Second))
}

// Bytes returns the buffer as PCM16 little-endian bytes.
func (b *Buffer) Bytes() []byte {
	return SamplesToBytes(b.Samples)
}

// DecodeAudio converts raw PCM16 bytes at sourceRate into a playable Buffer
// at targetRate, resampling if the rates differ. Safe to call repeatedly on
// a busy consumer goroutine: it allocates only the output buffer.
// Returns a CodecError on truncated input or non-positive rates.
func DecodeAudio(data []byte, sourceRate, targetRate int) (*Buffer, error) {
	if len(data) == 0 {
		return nil, newCodecError("decode", "empty audio payload", nil)
	}
	if len(data)%2 != 0 {
		return nil, newCodecError("decode", "truncated PCM16 payload (odd byte length)", nil)
	}
	if sourceRate <= 0 || targetRate <= 0 {
		return nil, newCodecError("decode", "sample rates must be positive", nil)
	}
	samples := BytesToSamples(data)
	if sourceRate != targetRate {
		samples = Resample(samples, sourceRate, targetRate)
	}
	return &Buffer{Samples: samples, Rate: targetRate}, nil
}
