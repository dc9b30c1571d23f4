package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// sine returns n samples of a sine wave at freq Hz.
func sine(freq float64, rate, n int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

// writeTestWAV writes interleaved 16-bit PCM with the given channel count.
func writeTestWAV(t *testing.T, path string, rate, channels int, interleaved []float32) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	data := make([]int, len(interleaved))
	for i, s := range interleaved {
		data[i] = int(s * 32767)
	}

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder %s: %v", path, err)
	}
}

// writeTestFLAC writes mono 16-bit FLAC using verbatim subframes.
func writeTestFLAC(t *testing.T, path string, rate int, samples []float32) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	const blockSize = 4096
	info := &meta.StreamInfo{
		BlockSizeMin:  blockSize,
		BlockSizeMax:  blockSize,
		SampleRate:    uint32(rate),
		NChannels:     1,
		BitsPerSample: 16,
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		t.Fatalf("flac encoder: %v", err)
	}

	for start := 0; start < len(samples); start += blockSize {
		end := min(start+blockSize, len(samples))
		block := make([]int32, end-start)
		for i, s := range samples[start:end] {
			block[i] = int32(s * 32767)
		}
		fr := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(len(block)),
				SampleRate:    uint32(rate),
				Channels:      frame.ChannelsMono,
				BitsPerSample: 16,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   block,
				NSamples:  len(block),
			}},
		}
		if err := enc.WriteFrame(fr); err != nil {
			t.Fatalf("flac frame: %v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("flac close: %v", err)
	}
}

func writeGarbage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("this is definitely not audio data at all"), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
