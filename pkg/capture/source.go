// Package capture provides the two media capture pipelines feeding a live
// session: fixed-block microphone audio and low-cadence camera frames.
//
// Pipelines are producers only. They never block waiting for the network:
// the audio pipeline drops the oldest queued frame under backpressure, and
// the video pipeline simply skips a tick.
package capture

import (
	"context"
	"io"
)

// Wire format constants for outbound media.
const (
	// InputSampleRate is the fixed rate the endpoint expects for audio input.
	InputSampleRate = 16000

	// BlockSize is the nominal number of samples per outbound audio block.
	BlockSize = 4096

	// AudioMIME tags outbound microphone blocks.
	AudioMIME = "audio/pcm;rate=16000"

	// JPEGMIME tags outbound camera frames.
	JPEGMIME = "image/jpeg"
)

// MediaFrame is one unit of outbound media. It is produced by a pipeline,
// consumed once by the session, and never retained.
type MediaFrame struct {
	// MIME identifies the payload ("audio/pcm;rate=16000" or "image/jpeg").
	MIME string

	// Data is the raw payload, not yet transport-encoded.
	Data []byte
}

// AudioSource captures live microphone audio as float sample blocks.
// Implementations hold an exclusive handle on the physical device.
type AudioSource interface {
	// ReadBlock returns the next block of float samples at Rate(),
	// blocking until audio is available. Returns io.EOF once the
	// source is closed.
	ReadBlock(ctx context.Context) ([]float32, error)

	// Rate is the native sample rate of this source in Hz.
	Rate() int

	// Close releases the device handle. Safe to call more than once.
	io.Closer
}

// VideoSource provides the most recent camera frame, already downsampled
// and compressed to JPEG. The sequence number increases once per new
// readable frame, letting callers detect stale reads.
type VideoSource interface {
	// Capture returns the latest encoded frame and its sequence number.
	// A nil frame with a nil error means the device has not produced a
	// readable frame yet (e.g. still warming up).
	Capture() (frame []byte, seq uint64, err error)

	// Close releases the device handle. Safe to call more than once.
	io.Closer
}

// AudioStats reports audio pipeline counters.
type AudioStats struct {
	// BlocksSent is the number of encoded blocks enqueued.
	BlocksSent int64 `json:"blocks_sent"`

	// BlocksDropped is the number of blocks discarded under backpressure.
	BlocksDropped int64 `json:"blocks_dropped"`
}

// VideoStats reports video pipeline counters.
type VideoStats struct {
	// FramesSent is the number of frames enqueued.
	FramesSent int64 `json:"frames_sent"`

	// TicksSkipped counts ticks with no new readable frame.
	TicksSkipped int64 `json:"ticks_skipped"`
}
