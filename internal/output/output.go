// Package output creates the write-once files the pipelines persist:
// transcripts, analysis reports and recordings.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TimestampLayout is the time format embedded in output file names.
const TimestampLayout = "20060102_150405"

// maxSuffix bounds the collision search in Create.
const maxSuffix = 1000

// Timestamp formats t for use in a file name.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Create makes dir if needed and exclusively creates dir/<base><ext>. When
// that name is taken it tries <base>_1<ext>, <base>_2<ext> and so on, so an
// existing file is never overwritten.
func Create(dir, base, ext string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("output: creating %s: %w", dir, err)
	}

	name := base + ext
	for i := 0; i < maxSuffix; i++ {
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("output: creating %s: %w", name, err)
		}
	}
	return nil, fmt.Errorf("output: no free name for %s%s in %s", base, ext, dir)
}

// WriteFile creates a new file via Create, writes data and closes it. It
// returns the path written.
func WriteFile(dir, base, ext string, data []byte) (string, error) {
	f, err := Create(dir, base, ext)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("output: writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("output: closing %s: %w", path, err)
	}
	return path, nil
}
