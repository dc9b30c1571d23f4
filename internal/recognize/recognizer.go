// Package recognize transcribes a whole audio file with a hosted speech
// service, falling back to an offline Vosk recognizer.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/chaz8081/gostt-transcriber/internal/apperr"
	"github.com/chaz8081/gostt-transcriber/internal/audio"
)

// SampleRate is the rate clips are decoded at for offline recognition.
const SampleRate = 16000

var (
	// ErrTimeout marks a failure worth retrying after a backoff.
	ErrTimeout = errors.New("recognizer timed out")
	// ErrUnintelligible means the service ran but produced no text.
	ErrUnintelligible = errors.New("speech could not be understood")
)

// Clip is one audio file loaded as a single record.
type Clip struct {
	Path string
	// Data is the original file content, sent as-is to hosted services.
	Data []byte
	// Samples is mono PCM at SampleRate.
	Samples []float32
}

// LoadClip reads path fully and decodes it. No streaming is done.
func LoadClip(path string) (*Clip, error) {
	buf, err := audio.Load(path, SampleRate)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.New(apperr.NotFound, "recognize: load", err)
	}
	return &Clip{Path: path, Data: data, Samples: buf.Samples}, nil
}

// Recognizer turns a clip into text.
type Recognizer interface {
	Name() string
	// Recognize returns the recognized text. Failures wrap ErrTimeout or
	// ErrUnintelligible when they are of that class.
	Recognize(ctx context.Context, clip *Clip) (string, error)
}

// IsTimeout reports whether err is a timeout-class failure.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classify maps a recognizer failure onto the error taxonomy.
func classify(backend string, err error) error {
	op := "recognize: " + backend
	switch {
	case errors.Is(err, ErrUnintelligible):
		return apperr.New(apperr.RecognitionUnintelligible, op, err)
	case IsTimeout(err):
		return apperr.New(apperr.RecognitionRequestError, op, fmt.Errorf("%w: %w", ErrTimeout, err))
	default:
		return apperr.Ensure(apperr.RecognitionRequestError, op, err)
	}
}
