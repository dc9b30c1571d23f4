package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/gostt-transcriber/internal/apperr"
	"github.com/chaz8081/gostt-transcriber/internal/audio"
	"github.com/chaz8081/gostt-transcriber/internal/config"
	"github.com/chaz8081/gostt-transcriber/internal/metrics"
	"github.com/chaz8081/gostt-transcriber/internal/models"
	"github.com/chaz8081/gostt-transcriber/internal/output"
)

// SampleRate is the input rate whisper models expect.
const SampleRate = 16000

// Progress milestones reported to a ProgressFunc.
const (
	ProgressStart    = 0
	ProgressMid      = 50
	ProgressComplete = 100
)

// ProgressFunc receives advisory progress percentages. Calls happen on the
// transcribing goroutine.
type ProgressFunc func(percent int)

// Transcript is the saved result of one Transcribe call.
type Transcript struct {
	Text      string
	Source    string
	Key       models.Key
	CreatedAt time.Time
	// Path is the transcript file; empty if saving failed.
	Path string
}

// Service validates input, fetches a model from the cache, decodes and
// saves the transcript.
type Service struct {
	Cache       *ModelCache
	Device      models.Device
	DefaultSize models.Size
	Language    string
	// OutputDir receives one {stem}_{timestamp}.txt per call.
	OutputDir string
	// Config supplies per-size decode settings; nil uses the stock policy.
	Config    *config.Config
	Metrics   *metrics.Metrics

	now func() time.Time
}

// NewService builds a Service from cfg around an existing cache.
func NewService(cfg *config.Config, cache *ModelCache, device models.Device, m *metrics.Metrics) *Service {
	size, err := models.ParseSize(cfg.DefaultModel)
	if err != nil {
		size = models.Tiny
	}
	return &Service{
		Cache:       cache,
		Device:      device,
		DefaultSize: size,
		Language:    cfg.Language,
		OutputDir:   cfg.TranscriptionsDir(),
		Config:      cfg,
		Metrics:     m,
	}
}

// Transcribe decodes the audio at path with the given model size (the
// default size when empty) and saves the transcript.
//
// A missing file fails with apperr.NotFound before any model is loaded.
// Load and decode failures, including panics inside the decoder, are
// returned as apperr.ModelError. A failure to save the transcript is logged
// and the transcript still returned. Transient memory is released on every
// exit path.
func (s *Service) Transcribe(ctx context.Context, path string, size models.Size, progress ProgressFunc) (tr *Transcript, err error) {
	const op = "transcribe"
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("transcription panicked", "path", path, "panic", r)
			tr = nil
			err = apperr.New(apperr.ModelError, op, fmt.Errorf("panic: %v", r))
		}
		releaseMemory()
		s.Metrics.RecordTranscription(resultLabel(err), time.Since(start).Seconds())
	}()

	if !audio.Exists(path) {
		return nil, apperr.New(apperr.NotFound, op, fmt.Errorf("%s", path))
	}

	if size == "" {
		size = s.DefaultSize
	}
	size, err = models.ParseSize(string(size))
	if err != nil {
		return nil, apperr.New(apperr.ModelError, op, err)
	}

	report := newReporter(progress)
	report.emit(ProgressStart)

	buf, err := audio.Load(path, SampleRate)
	if err != nil {
		slog.Warn("transcribe: loading audio failed", "path", path, "error", err)
		return nil, apperr.Ensure(apperr.DecodeError, op, err)
	}

	key := models.NewKey(size, s.Device)
	model, err := s.Cache.Get(key)
	if err != nil {
		slog.Error("transcribe: model unavailable", "key", key.String(), "error", err)
		return nil, apperr.New(apperr.ModelError, op, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, apperr.New(apperr.ModelError, op, err)
	}

	opts := s.decodeOptions(key)
	slog.Info("transcribing", "path", path, "key", key.String(), "seconds", buf.Seconds())

	segments, err := model.Decode(buf.Samples, opts, func(p int) {
		if p >= ProgressMid {
			report.emit(ProgressMid)
		}
	})
	if err != nil {
		slog.Error("transcribe: decode failed", "path", path, "error", err)
		return nil, apperr.New(apperr.ModelError, op, err)
	}
	report.emit(ProgressMid)

	tr = &Transcript{
		Text:      joinSegments(segments),
		Source:    path,
		Key:       key,
		CreatedAt: s.clock(),
	}

	if p, serr := s.save(tr); serr != nil {
		slog.Warn("transcribe: saving transcript failed", "path", path, "error", serr)
	} else {
		tr.Path = p
		slog.Info("transcription saved", "path", p)
	}

	report.emit(ProgressComplete)
	return tr, nil
}

// decodeOptions applies the fixed policy: configured language, no
// translation, beam search, half precision only on an accelerator.
func (s *Service) decodeOptions(key models.Key) DecodeOptions {
	cfg := s.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	settings := cfg.ModelSettingsFor(string(key.Size))
	return DecodeOptions{
		Language:  s.Language,
		Translate: false,
		BeamSize:  settings.BeamSize,
		BestOf:    settings.BestOf,
		FP16:      key.Precision == models.FP16,
	}
}

func (s *Service) save(tr *Transcript) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(tr.Source), filepath.Ext(tr.Source))
	base := stem + "_" + output.Timestamp(tr.CreatedAt)
	p, err := output.WriteFile(s.OutputDir, base, ".txt", []byte(tr.Text))
	if err != nil {
		return "", apperr.New(apperr.PersistError, "transcribe: save", err)
	}
	return p, nil
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// reporter forwards each milestone at most once and in increasing order.
type reporter struct {
	mu   sync.Mutex
	fn   ProgressFunc
	last int
}

func newReporter(fn ProgressFunc) *reporter {
	return &reporter{fn: fn, last: -1}
}

func (r *reporter) emit(p int) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	if p <= r.last {
		r.mu.Unlock()
		return
	}
	r.last = p
	r.mu.Unlock()
	r.fn(p)
}

func releaseMemory() {
	runtime.GC()
	debug.FreeOSMemory()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}
