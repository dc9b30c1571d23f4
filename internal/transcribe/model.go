// Package transcribe turns audio files into saved transcripts using
// whisper.cpp models held in a process-wide cache.
package transcribe

import (
	"github.com/chaz8081/gostt-transcriber/internal/models"
)

// DecodeOptions is the fixed decoding policy applied to every call.
type DecodeOptions struct {
	Language  string
	Translate bool
	BeamSize  int
	BestOf    int
	FP16      bool
}

// Model is a loaded speech-to-text model.
type Model interface {
	// Decode transcribes mono 16kHz float32 samples and returns the
	// recognized segments in order. onProgress, if non-nil, receives
	// percentages reported by the decoder.
	Decode(samples []float32, opts DecodeOptions, onProgress func(int)) ([]string, error)
	// Close releases model resources.
	Close() error
}

// Loader constructs the model identified by key.
type Loader func(key models.Key) (Model, error)
