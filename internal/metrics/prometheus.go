// Package metrics exposes Prometheus instrumentation for the transcription
// and analysis pipelines. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the service
type Metrics struct {
	// Analysis metrics
	Analyses *prometheus.CounterVec

	// Transcription metrics
	Transcriptions        *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	ModelLoads            *prometheus.CounterVec
	CachedModels          prometheus.Gauge

	// Recognizer metrics
	RecognizerAttempts *prometheus.CounterVec
	BackoffWaits       prometheus.Counter
	Fallbacks          prometheus.Counter

	// Capture metrics
	CaptureDropped prometheus.Counter
}

// New creates and registers all metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Analyses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gostt_analyses_total",
			Help: "Total number of audio analyses by result",
		}, []string{"result"}),

		Transcriptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gostt_transcriptions_total",
			Help: "Total number of transcriptions by result",
		}, []string{"result"}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gostt_transcription_duration_seconds",
			Help:    "Wall time of a transcription call",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2 minutes
		}),
		ModelLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gostt_model_loads_total",
			Help: "Total number of model loads by size and device",
		}, []string{"size", "device"}),
		CachedModels: f.NewGauge(prometheus.GaugeOpts{
			Name: "gostt_cached_models",
			Help: "Number of models currently held in the model cache",
		}),

		RecognizerAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gostt_recognizer_attempts_total",
			Help: "Total number of recognizer calls by backend and result",
		}, []string{"backend", "result"}),
		BackoffWaits: f.NewCounter(prometheus.CounterOpts{
			Name: "gostt_recognizer_backoff_waits_total",
			Help: "Total number of backoff waits after hosted recognizer timeouts",
		}),
		Fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "gostt_recognizer_fallbacks_total",
			Help: "Total number of times the offline recognizer was used",
		}),

		CaptureDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "gostt_capture_dropped_buffers_total",
			Help: "Total number of capture buffers dropped because the queue was full",
		}),
	}
}

// RecordAnalysis counts one analysis run.
func (m *Metrics) RecordAnalysis(result string) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(result).Inc()
}

// RecordTranscription counts one transcription and observes its duration.
func (m *Metrics) RecordTranscription(result string, seconds float64) {
	if m == nil {
		return
	}
	m.Transcriptions.WithLabelValues(result).Inc()
	m.TranscriptionDuration.Observe(seconds)
}

// RecordModelLoad counts a model construction and sets the cache size.
func (m *Metrics) RecordModelLoad(size, device string, cached int) {
	if m == nil {
		return
	}
	m.ModelLoads.WithLabelValues(size, device).Inc()
	m.CachedModels.Set(float64(cached))
}

// SetCachedModels sets the model cache size gauge.
func (m *Metrics) SetCachedModels(n int) {
	if m == nil {
		return
	}
	m.CachedModels.Set(float64(n))
}

// RecordRecognizerAttempt counts one recognizer call.
func (m *Metrics) RecordRecognizerAttempt(backend, result string) {
	if m == nil {
		return
	}
	m.RecognizerAttempts.WithLabelValues(backend, result).Inc()
}

// RecordBackoff counts one backoff wait.
func (m *Metrics) RecordBackoff() {
	if m == nil {
		return
	}
	m.BackoffWaits.Inc()
}

// RecordFallback counts a switch to the offline recognizer.
func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
}

// RecordCaptureDropped adds n dropped capture buffers.
func (m *Metrics) RecordCaptureDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CaptureDropped.Add(float64(n))
}
