package pcm

import "math"

// Resample converts audio from one sample rate to another using linear
// interpolation. Adequate for speech; a polyphase filter would be needed
// for music-grade quality.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	if newLen == 0 {
		return []int16{}
	}

	result := make([]int16, newLen)
	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			s1 := float64(samples[srcIdx])
			s2 := float64(samples[srcIdx+1])
			result[i] = int16(s1 + frac*(s2-s1))
		}
	}
	return result
}

// ResampleFloat32 converts float samples from one rate to another using
// linear interpolation.
func ResampleFloat32(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	if newLen == 0 {
		return []float32{}
	}

	result := make([]float32, newLen)
	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			result[i] = samples[srcIdx] + frac*(samples[srcIdx+1]-samples[srcIdx])
		}
	}
	return result
}

// StreamResampler converts a continuous stream of float samples between two
// rates, carrying the fractional source position across blocks. Resampling
// each captured block independently floors the output length, losing a
// fraction of a sample per block; over a long capture the stream drifts and
// exactly-sufficient input never fills a wire block.
type StreamResampler struct {
	ratio float64
	pos   float64
	tail  []float32
}

// NewStreamResampler creates a resampler from fromRate to toRate.
func NewStreamResampler(fromRate, toRate int) *StreamResampler {
	return &StreamResampler{ratio: float64(fromRate) / float64(toRate)}
}

// Write feeds one captured block and returns the converted samples that are
// fully determined so far. The returned slice may be empty; up to one source
// sample is carried until the next write.
func (r *StreamResampler) Write(block []float32) []float32 {
	if r.ratio == 1 {
		return block
	}
	r.tail = append(r.tail, block...)

	var out []float32
	for {
		idx := int(r.pos)
		if idx+1 >= len(r.tail) {
			break
		}
		frac := float32(r.pos - float64(idx))
		out = append(out, r.tail[idx]+frac*(r.tail[idx+1]-r.tail[idx]))
		r.pos += r.ratio
	}

	if drop := int(r.pos); drop > 0 {
		if drop > len(r.tail) {
			drop = len(r.tail)
		}
		r.tail = append(r.tail[:0:0], r.tail[drop:]...)
		r.pos -= float64(drop)
	}
	return out
}

// BytesToSamples converts raw PCM16 little-endian bytes to int16 samples.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts int16 samples to raw PCM16 little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// RMS calculates the root-mean-square level of PCM16 samples.
// Returns a value between 0.0 and 1.0, useful for level metering.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		n := float64(s) / 32768.0
		sum += n * n
	}
	return math.Sqrt(sum / float64(len(samples)))
}
