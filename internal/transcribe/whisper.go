package transcribe

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/chaz8081/gostt-transcriber/internal/models"
)

// whisperModel wraps a whisper.cpp model. Contexts created from one model
// share its state, so decodes are serialized.
type whisperModel struct {
	mu    sync.Mutex
	model whisper.Model
}

// NewWhisperLoader returns a Loader that reads ggml weights from modelsDir.
// The binding selects the compute backend it was built with; key.Device only
// affects caching and precision.
func NewWhisperLoader(modelsDir string) Loader {
	return func(key models.Key) (Model, error) {
		return newWhisperModel(models.PathFor(modelsDir, key.Size))
	}
}

// newWhisperModel loads a whisper model from the given path.
// The caller must call Close() when done.
func newWhisperModel(modelPath string) (*whisperModel, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load whisper model %q: %w", modelPath, err)
	}
	return &whisperModel{model: model}, nil
}

// Close releases the whisper model resources.
func (w *whisperModel) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model != nil {
		err := w.model.Close()
		w.model = nil
		return err
	}
	return nil
}

// Decode transcribes mono 16kHz float32 audio samples into segments.
func (w *whisperModel) Decode(samples []float32, opts DecodeOptions, onProgress func(int)) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return nil, fmt.Errorf("transcribe: model is closed")
	}

	ctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("transcribe: create context: %w", err)
	}

	if opts.Language != "" {
		if err := ctx.SetLanguage(opts.Language); err != nil {
			return nil, fmt.Errorf("transcribe: set language %q: %w", opts.Language, err)
		}
	}
	ctx.SetTranslate(opts.Translate)
	if opts.BeamSize > 0 {
		ctx.SetBeamSize(opts.BeamSize)
	}
	// best_of only applies to sampling; with beam search the binding ignores it.
	slog.Debug("whisper decode", "language", opts.Language, "beam_size", opts.BeamSize,
		"best_of", opts.BestOf, "fp16", opts.FP16, "samples", len(samples))

	var progress whisper.ProgressCallback
	if onProgress != nil {
		progress = func(p int) { onProgress(p) }
	}

	if err := ctx.Process(samples, nil, nil, progress); err != nil {
		return nil, fmt.Errorf("transcribe: process: %w", err)
	}

	var segments []string
	for {
		seg, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("transcribe: next segment: %w", err)
		}
		segments = append(segments, seg.Text)
	}

	return segments, nil
}

// joinSegments concatenates segments in decode order into one trimmed string.
func joinSegments(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
