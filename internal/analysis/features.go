// Package analysis computes pitch and loudness statistics for an audio file
// and persists them as a timestamped report.
package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chaz8081/gostt-transcriber/internal/audio"
)

// Framing shared by both analyzers.
const (
	frameLength = 2048
	hopLength   = 512
)

// Pitch tracking band and peak threshold (relative to the frame's peak
// magnitude).
const (
	pitchFMin      = 150.0
	pitchFMax      = 4000.0
	pitchThreshold = 0.1
)

// PitchStats summarizes the voiced-frame pitch series in Hz. All fields are
// zero when no frame carries a positive estimate.
type PitchStats struct {
	Mean  float64 `json:"mean_pitch" bson:"mean_pitch"`
	Std   float64 `json:"std_pitch" bson:"std_pitch"`
	Max   float64 `json:"max_pitch" bson:"max_pitch"`
	Min   float64 `json:"min_pitch" bson:"min_pitch"`
	Range float64 `json:"pitch_range" bson:"pitch_range"`
}

// LoudnessStats summarizes the frame RMS series. Range is Max - Min.
type LoudnessStats struct {
	Mean  float64 `json:"mean_loudness" bson:"mean_loudness"`
	Std   float64 `json:"std_loudness" bson:"std_loudness"`
	Max   float64 `json:"max_loudness" bson:"max_loudness"`
	Min   float64 `json:"min_loudness" bson:"min_loudness"`
	Range float64 `json:"dynamic_range" bson:"dynamic_range"`
}

// AnalyzePitch estimates one pitch per STFT frame by picking the highest
// interpolated spectral peak in the 150-4000 Hz band, drops unvoiced frames
// and summarizes the rest.
func AnalyzePitch(buf *audio.SampleBuffer) PitchStats {
	if buf == nil || len(buf.Samples) == 0 || buf.SampleRate <= 0 {
		return PitchStats{}
	}

	binHz := float64(buf.SampleRate) / frameLength
	nBins := frameLength/2 + 1
	lo := max(int(math.Ceil(pitchFMin/binHz)), 1)
	hi := min(int(math.Ceil(pitchFMax/binHz)), nBins-1)

	fft := fourier.NewFFT(frameLength)
	win := hannWindow(frameLength)
	seg := make([]float64, frameLength)
	coeffs := make([]complex128, nBins)
	mag := make([]float64, nBins)

	var pitches []float64
	for _, frame := range frames(buf.Float64(), frameLength, hopLength) {
		floats.MulTo(seg, frame, win)
		fft.Coefficients(coeffs, seg)
		for k, c := range coeffs {
			mag[k] = cmplx.Abs(c)
		}

		threshold := pitchThreshold * floats.Max(mag)
		best := 0.0
		for k := lo; k < hi; k++ {
			s := mag[k]
			if s <= threshold || s <= mag[k-1] || s < mag[k+1] {
				continue
			}
			// Parabolic interpolation around the peak bin.
			avg := 0.5 * (mag[k+1] - mag[k-1])
			curv := 2*s - mag[k+1] - mag[k-1]
			shift := 0.0
			if math.Abs(curv) > 1e-12 {
				shift = avg / curv
			}
			best = math.Max(best, (float64(k)+shift)*binHz)
		}
		if best > 0 {
			pitches = append(pitches, best)
		}
	}

	mean, std, hiV, loV := summarize(pitches)
	return PitchStats{Mean: mean, Std: std, Max: hiV, Min: loV, Range: hiV - loV}
}

// AnalyzeLoudness computes the RMS of every frame across the whole buffer
// and summarizes the series.
func AnalyzeLoudness(buf *audio.SampleBuffer) LoudnessStats {
	if buf == nil || len(buf.Samples) == 0 {
		return LoudnessStats{}
	}

	fs := frames(buf.Float64(), frameLength, hopLength)
	rms := make([]float64, len(fs))
	for i, f := range fs {
		rms[i] = math.Sqrt(floats.Dot(f, f) / float64(len(f)))
	}

	mean, std, hiV, loV := summarize(rms)
	return LoudnessStats{Mean: mean, Std: std, Max: hiV, Min: loV, Range: hiV - loV}
}

// frames splits x into overlapping frames of length n every hop samples,
// after padding n/2 zeros on both sides so frames are centered on their hop
// position. The returned slices share one backing array.
func frames(x []float64, n, hop int) [][]float64 {
	padded := make([]float64, len(x)+n)
	copy(padded[n/2:], x)

	count := 1 + (len(padded)-n)/hop
	out := make([][]float64, count)
	for i := range out {
		start := i * hop
		out[i] = padded[start : start+n]
	}
	return out
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return window.Hann(w)
}

// summarize returns mean, population standard deviation, max and min of
// values, all zero for an empty series.
func summarize(values []float64) (mean, std, hi, lo float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	return mean, math.Sqrt(variance), floats.Max(values), floats.Min(values)
}
