package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordAnalysis("ok")
	m.RecordTranscription("ok", 1)
	m.RecordModelLoad("tiny", "cpu", 1)
	m.SetCachedModels(0)
	m.RecordRecognizerAttempt("hosted", "timeout")
	m.RecordBackoff()
	m.RecordFallback()
	m.RecordCaptureDropped(3)
}

func TestRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordAnalysis("ok")
	m.RecordAnalysis("ok")
	m.RecordAnalysis("invalid_audio")
	if got := testutil.ToFloat64(m.Analyses.WithLabelValues("ok")); got != 2 {
		t.Errorf("analyses{ok} = %v, want 2", got)
	}

	m.RecordModelLoad("base", "cpu", 2)
	if got := testutil.ToFloat64(m.CachedModels); got != 2 {
		t.Errorf("cached models = %v, want 2", got)
	}
	m.SetCachedModels(0)
	if got := testutil.ToFloat64(m.CachedModels); got != 0 {
		t.Errorf("cached models after clear = %v, want 0", got)
	}

	m.RecordBackoff()
	m.RecordBackoff()
	if got := testutil.ToFloat64(m.BackoffWaits); got != 2 {
		t.Errorf("backoff waits = %v, want 2", got)
	}

	m.RecordCaptureDropped(0)
	m.RecordCaptureDropped(4)
	if got := testutil.ToFloat64(m.CaptureDropped); got != 4 {
		t.Errorf("capture dropped = %v, want 4", got)
	}
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering the same metrics twice should panic")
		}
	}()
	New(reg)
}
