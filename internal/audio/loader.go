package audio

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/chaz8081/gostt-transcriber/internal/apperr"
)

// Load decodes the file at path into a mono buffer at targetRate.
//
// It fails with apperr.NotFound when path does not exist and with
// apperr.DecodeError when no decoder can parse the file. A source at a
// different rate is resampled and logged as a warning, not an error.
func Load(path string, targetRate int) (*SampleBuffer, error) {
	const op = "audio: load"

	if targetRate <= 0 {
		return nil, apperr.New(apperr.DecodeError, op, fmt.Errorf("target sample rate must be > 0, got %d", targetRate))
	}

	if err := checkExists(path); err != nil {
		return nil, apperr.New(apperr.NotFound, op, err)
	}

	dec, err := decodeFile(path)
	if err != nil {
		return nil, apperr.New(apperr.DecodeError, op, fmt.Errorf("%s: %w", path, err))
	}

	samples := dec.mono()
	if dec.rate != targetRate {
		slog.Warn("resampling audio", "path", path, "from_hz", dec.rate, "to_hz", targetRate)
		samples = Resample(samples, dec.rate, targetRate)
	}

	return &SampleBuffer{Samples: samples, SampleRate: targetRate}, nil
}

// checkExists returns os.ErrNotExist (wrapped) when path is missing or is a
// directory.
func checkExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", path, os.ErrNotExist)
	}
	return nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	return checkExists(path) == nil
}
