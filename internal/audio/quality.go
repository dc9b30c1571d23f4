package audio

import (
	"os"
)

// Quality gates applied by CheckQuality.
const (
	DefaultMaxDuration   = 600.0 // seconds
	DefaultMinSampleRate = 16000
)

// Limits configures the two quality gates.
type Limits struct {
	MaxDuration   float64 // seconds, exclusive upper bound
	MinSampleRate int     // Hz, inclusive lower bound
}

// DefaultLimits returns the stock 600 s / 16 kHz gates.
func DefaultLimits() Limits {
	return Limits{MaxDuration: DefaultMaxDuration, MinSampleRate: DefaultMinSampleRate}
}

// QualityReport describes a file's format and whether it passes the gates.
type QualityReport struct {
	Duration     float64 `json:"duration" bson:"duration"`
	SampleRate   int     `json:"sample_rate" bson:"sample_rate"`
	Channels     int     `json:"channels" bson:"channels"`
	FileSize     int64   `json:"file_size" bson:"file_size"`
	IsValid      bool    `json:"is_valid" bson:"is_valid"`
	Error        string  `json:"error,omitempty" bson:"error,omitempty"`
	DurationOK   bool    `json:"duration_ok" bson:"duration_ok"`
	SampleRateOK bool    `json:"sample_rate_ok" bson:"sample_rate_ok"`
}

// CheckQuality decodes path from scratch and reports its duration, native
// sample rate, channel count and size. It never fails: problems are recorded
// in the report with IsValid false.
func CheckQuality(path string, limits Limits) QualityReport {
	if limits.MaxDuration <= 0 {
		limits.MaxDuration = DefaultMaxDuration
	}
	if limits.MinSampleRate <= 0 {
		limits.MinSampleRate = DefaultMinSampleRate
	}

	var report QualityReport

	info, err := os.Stat(path)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.FileSize = info.Size()

	dec, err := decodeFile(path)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	report.SampleRate = dec.rate
	report.Channels = 1
	if dec.channels > 1 {
		report.Channels = 2
	}
	report.Duration = float64(dec.frames()) / float64(dec.rate)
	report.IsValid = true
	report.DurationOK = report.Duration > 0 && report.Duration < limits.MaxDuration
	report.SampleRateOK = report.SampleRate >= limits.MinSampleRate

	return report
}
