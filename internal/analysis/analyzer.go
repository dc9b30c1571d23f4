package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/chaz8081/gostt-transcriber/internal/apperr"
	"github.com/chaz8081/gostt-transcriber/internal/audio"
	"github.com/chaz8081/gostt-transcriber/internal/config"
	"github.com/chaz8081/gostt-transcriber/internal/metrics"
	"github.com/chaz8081/gostt-transcriber/internal/output"
	"github.com/chaz8081/gostt-transcriber/internal/store"
)

// Messages returned by Analyze. Callers match on these exact strings.
const (
	MsgLoadFailed   = "Failed to load audio file"
	MsgInvalidAudio = "Invalid audio file"
)

// DefaultCollection is the store collection analysis reports are saved to.
const DefaultCollection = "speech_analysis"

// Report is one analysis run. It is never modified after Analyze returns.
type Report struct {
	FileInfo      audio.QualityReport `json:"file_info" bson:"file_info"`
	PitchStats    PitchStats          `json:"pitch_stats" bson:"pitch_stats"`
	LoudnessStats LoudnessStats       `json:"loudness_stats" bson:"loudness_stats"`
	CreatedAt     time.Time           `json:"created_at" bson:"created_at"`
	// Path is where the report was written; empty if persisting failed.
	Path string `json:"-" bson:"-"`
}

// Analyzer composes the loader and both feature analyzers.
type Analyzer struct {
	SampleRate int
	Limits     audio.Limits

	// Store, when non-nil, receives a copy of every report.
	Store      store.Store
	Collection string

	Metrics *metrics.Metrics

	now func() time.Time
}

// New returns an Analyzer configured from cfg. st and m may be nil.
func New(cfg *config.Config, st store.Store, m *metrics.Metrics) *Analyzer {
	collection := cfg.Store.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	return &Analyzer{
		SampleRate: cfg.AudioSettings.SampleRate,
		Limits: audio.Limits{
			MaxDuration:   cfg.AudioSettings.MaxDuration,
			MinSampleRate: audio.DefaultMinSampleRate,
		},
		Store:      st,
		Collection: collection,
		Metrics:    m,
	}
}

// Analyze loads path, checks its quality, computes pitch and loudness stats
// and writes the report to an analysis/ directory beside the audio's parent
// directory. A failure to persist is logged and the report still returned.
//
// The returned error is always an *apperr.Error; a missing file yields
// MsgLoadFailed and a file no decoder accepts yields MsgInvalidAudio.
func (a *Analyzer) Analyze(ctx context.Context, path string) (report *Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("analysis panicked", "path", path, "panic", r)
			report = nil
			err = apperr.Message(apperr.Unknown, fmt.Sprint(r), nil)
		}
		a.Metrics.RecordAnalysis(resultLabel(err))
	}()

	rate := a.SampleRate
	if rate <= 0 {
		rate = audio.DefaultMinSampleRate
	}

	buf, err := audio.Load(path, rate)
	if err != nil {
		slog.Warn("analysis: loading audio failed", "path", path, "error", err)
		if apperr.Is(err, apperr.DecodeError) {
			return nil, apperr.Message(apperr.InvalidAudio, MsgInvalidAudio, err)
		}
		return nil, apperr.Message(apperr.KindOf(err), MsgLoadFailed, err)
	}

	info := audio.CheckQuality(path, a.Limits)
	if !info.IsValid {
		slog.Warn("analysis: quality check failed", "path", path, "error", info.Error)
		return nil, apperr.Message(apperr.InvalidAudio, MsgInvalidAudio, fmt.Errorf("%s", info.Error))
	}

	report = &Report{
		FileInfo:      info,
		PitchStats:    AnalyzePitch(buf),
		LoudnessStats: AnalyzeLoudness(buf),
		CreatedAt:     a.clock(),
	}

	if p, perr := a.persist(path, report); perr != nil {
		slog.Warn("analysis: saving report failed", "path", path, "error", perr)
	} else {
		report.Path = p
		slog.Info("analysis saved", "path", p)
	}

	if a.Store != nil {
		if id, serr := a.Store.Save(ctx, a.Collection, report); serr != nil {
			slog.Warn("analysis: storing record failed", "collection", a.Collection,
				"error", apperr.New(apperr.PersistError, "analysis: store", serr))
		} else {
			slog.Debug("analysis record stored", "collection", a.Collection, "id", id)
		}
	}

	return report, nil
}

// ReportDir returns where reports for the audio at path are written.
func ReportDir(path string) string {
	return filepath.Join(filepath.Dir(filepath.Dir(path)), "analysis")
}

func (a *Analyzer) persist(path string, r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return "", apperr.New(apperr.PersistError, "analysis: encode", err)
	}
	p, err := output.WriteFile(ReportDir(path), "analysis_"+output.Timestamp(r.CreatedAt), ".json", data)
	if err != nil {
		return "", apperr.New(apperr.PersistError, "analysis: write", err)
	}
	return p, nil
}

func (a *Analyzer) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}
