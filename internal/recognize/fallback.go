package recognize

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chaz8081/gostt-transcriber/internal/apperr"
	"github.com/chaz8081/gostt-transcriber/internal/config"
	"github.com/chaz8081/gostt-transcriber/internal/metrics"
)

// Defaults for the hosted retry loop.
const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 2 * time.Second
)

// ErrNoRecognizer is returned when neither backend is configured.
var ErrNoRecognizer = errors.New("no recognizer configured")

// Fallback tries Primary up to MaxRetries times, then Offline once.
//
// Only timeouts are retried, after a fixed Backoff. An unintelligible result
// from Primary ends the call unless FallbackOnUnintelligible is set; any
// other Primary failure moves straight to Offline. Offline failures are
// final.
type Fallback struct {
	Primary                  Recognizer
	Offline                  Recognizer
	MaxRetries               int
	Backoff                  time.Duration
	FallbackOnUnintelligible bool
	Metrics                  *metrics.Metrics

	// sleep waits between retries; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFallback builds a Fallback from cfg. Either recognizer may be nil.
func NewFallback(cfg config.RecognizerConfig, primary, offline Recognizer, m *metrics.Metrics) *Fallback {
	return &Fallback{
		Primary:                  primary,
		Offline:                  offline,
		MaxRetries:               cfg.MaxRetries,
		Backoff:                  time.Duration(cfg.BackoffSeconds) * time.Second,
		FallbackOnUnintelligible: cfg.FallbackOnUnintelligible,
		Metrics:                  m,
	}
}

// RecognizeFile loads path as one clip and recognizes it.
func (f *Fallback) RecognizeFile(ctx context.Context, path string) (string, error) {
	clip, err := LoadClip(path)
	if err != nil {
		return "", err
	}
	return f.Recognize(ctx, clip)
}

// Recognize returns the first successful text. When both paths fail the
// error describes the last failure; callers must not assume a result.
func (f *Fallback) Recognize(ctx context.Context, clip *Clip) (string, error) {
	var lastErr error

	if f.Primary != nil {
		text, done, err := f.tryPrimary(ctx, clip)
		if done {
			return text, err
		}
		lastErr = err
	}

	if f.Offline == nil {
		if lastErr == nil {
			lastErr = apperr.New(apperr.RecognitionRequestError, "recognize", ErrNoRecognizer)
		}
		return "", lastErr
	}

	slog.Info("[recognize] falling back to offline recognition", "backend", f.Offline.Name())
	f.Metrics.RecordFallback()

	text, err := f.Offline.Recognize(ctx, clip)
	if err != nil {
		err = classify(f.Offline.Name(), err)
		f.Metrics.RecordRecognizerAttempt(f.Offline.Name(), apperr.KindOf(err).String())
		slog.Warn("[recognize] offline recognition failed", "backend", f.Offline.Name(), "error", err)
		return "", err
	}
	f.Metrics.RecordRecognizerAttempt(f.Offline.Name(), "ok")
	slog.Info("[recognize] offline result", "backend", f.Offline.Name(), "chars", len(text))
	return text, nil
}

// tryPrimary runs the retry loop. done reports that the call is finished
// (success, terminal failure or cancellation) and Offline must not run.
func (f *Fallback) tryPrimary(ctx context.Context, clip *Clip) (text string, done bool, err error) {
	name := f.Primary.Name()
	retries := f.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}

	for attempt := 0; attempt < retries; attempt++ {
		out, rerr := f.Primary.Recognize(ctx, clip)
		if rerr == nil {
			f.Metrics.RecordRecognizerAttempt(name, "ok")
			slog.Info("[recognize] hosted result", "backend", name, "attempt", attempt+1, "chars", len(out))
			return out, true, nil
		}

		timeout := IsTimeout(rerr)
		err = classify(name, rerr)

		if timeout {
			f.Metrics.RecordRecognizerAttempt(name, "timeout")
			if ctx.Err() != nil {
				return "", true, err
			}
			if attempt < retries-1 {
				slog.Warn("[recognize] timeout, retrying", "backend", name,
					"attempt", attempt+1, "max_retries", retries, "backoff", f.backoff())
				f.Metrics.RecordBackoff()
				if werr := f.wait(ctx, f.backoff()); werr != nil {
					return "", true, apperr.New(apperr.RecognitionRequestError, "recognize: "+name, werr)
				}
			}
			continue
		}

		f.Metrics.RecordRecognizerAttempt(name, apperr.KindOf(err).String())
		if apperr.Is(err, apperr.RecognitionUnintelligible) {
			slog.Warn("[recognize] hosted service could not understand audio", "backend", name)
			if !f.FallbackOnUnintelligible {
				return "", true, err
			}
			return "", false, err
		}

		slog.Warn("[recognize] hosted request failed", "backend", name, "error", rerr)
		return "", false, err
	}

	return "", false, err
}

func (f *Fallback) backoff() time.Duration {
	if f.Backoff > 0 {
		return f.Backoff
	}
	return DefaultBackoff
}

func (f *Fallback) wait(ctx context.Context, d time.Duration) error {
	if f.sleep != nil {
		return f.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
