package transcribe

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chaz8081/gostt-transcriber/internal/audio"
	"github.com/chaz8081/gostt-transcriber/internal/models"
)

const jfkReference = "And so my fellow Americans, ask not what your country can do for you, ask what you can do for your country."

func benchJFK(b *testing.B) *audio.SampleBuffer {
	b.Helper()
	path := filepath.Join("..", "..", "third_party", "whisper.cpp", "samples", "jfk.wav")
	if !fileExists(path) {
		b.Skipf("JFK sample not found at %s", path)
	}
	buf, err := audio.Load(path, SampleRate)
	if err != nil {
		b.Fatalf("load %s: %v", path, err)
	}
	return buf
}

func benchModelsDir(b *testing.B, size models.Size) string {
	b.Helper()
	dir := filepath.Join("..", "..", "models")
	if path := models.PathFor(dir, size); !fileExists(path) {
		b.Skipf("model not found at %s", path)
	}
	return dir
}

// BenchmarkWhisperDecode reports real-time factor and WER per model size.
func BenchmarkWhisperDecode(b *testing.B) {
	buf := benchJFK(b)
	opts := DecodeOptions{Language: "en", BeamSize: 5, BestOf: 5}

	for _, size := range []models.Size{models.Tiny, models.Base} {
		b.Run(string(size), func(b *testing.B) {
			dir := benchModelsDir(b, size)
			cache := NewModelCache(NewWhisperLoader(dir), nil)
			defer cache.Clear()

			m, err := cache.Get(models.NewKey(size, models.CPU))
			if err != nil {
				b.Fatalf("load: %v", err)
			}
			b.ReportMetric(buf.Seconds()*1000, "audio-ms")

			// Warm up: single run outside the loop
			_, _ = m.Decode(buf.Samples, opts, nil)

			var last []string
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				segs, err := m.Decode(buf.Samples, opts, nil)
				if err != nil {
					b.Fatalf("Decode: %v", err)
				}
				last = segs
			}
			b.StopTimer()

			rtf := (b.Elapsed().Seconds() / float64(b.N)) / buf.Seconds()
			b.ReportMetric(rtf, "rtf")
			b.ReportMetric(ComputeWER(jfkReference, joinSegments(last)).WER, "wer")
		})
	}
}

// BenchmarkModelLoad measures the cold cost a cache miss pays.
func BenchmarkModelLoad(b *testing.B) {
	dir := benchModelsDir(b, models.Tiny)
	load := NewWhisperLoader(dir)
	key := models.NewKey(models.Tiny, models.CPU)

	for i := 0; i < b.N; i++ {
		start := time.Now()
		m, err := load(key)
		if err != nil {
			b.Fatalf("load: %v", err)
		}
		elapsed := time.Since(start)

		b.StopTimer()
		_ = m.Close()
		b.ReportMetric(float64(elapsed.Milliseconds()), "load-ms")
		b.StartTimer()
	}
}
