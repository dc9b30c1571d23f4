// Package audio decodes sound files into mono float32 sample buffers,
// checks file quality, and captures microphone input.
//
// WAV is decoded with go-audio/wav, FLAC with mewkiz/flac and MP3 with
// hajimehoshi/go-mp3. Any other container (m4a, ogg, ...) goes through the
// ffprobe/ffmpeg binaries when they are installed.
package audio

import "time"

// SampleBuffer is decoded mono audio at a fixed sample rate.
type SampleBuffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the length of the buffer.
func (b *SampleBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Seconds returns the length of the buffer in seconds.
func (b *SampleBuffer) Seconds() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Float64 returns a float64 copy of the samples for numeric analysis.
func (b *SampleBuffer) Float64() []float64 {
	out := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = float64(s)
	}
	return out
}

// decoded is the raw output of a format decoder: interleaved samples
// normalized to [-1.0, 1.0] at the file's native rate.
type decoded struct {
	samples  []float32
	rate     int
	channels int
}

// frames returns the number of sample frames (samples per channel).
func (d *decoded) frames() int {
	if d.channels <= 0 {
		return 0
	}
	return len(d.samples) / d.channels
}

// mono averages interleaved channels into a single channel.
func (d *decoded) mono() []float32 {
	if d.channels <= 1 {
		out := make([]float32, len(d.samples))
		copy(out, d.samples)
		return out
	}
	n := d.frames()
	out := make([]float32, n)
	inv := 1 / float32(d.channels)
	for i := 0; i < n; i++ {
		var sum float32
		base := i * d.channels
		for c := 0; c < d.channels; c++ {
			sum += d.samples[base+c]
		}
		out[i] = sum * inv
	}
	return out
}
