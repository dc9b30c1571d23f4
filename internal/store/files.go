package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Files writes one JSON file per record under dir/<collection>/<id>.json.
type Files struct {
	dir string
}

// NewFiles creates the root directory and returns a file-backed store.
func NewFiles(dir string) (*Files, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: files: empty directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: files: %w", err)
	}
	return &Files{dir: dir}, nil
}

// Dir returns the root directory.
func (f *Files) Dir() string { return f.dir }

// Save implements Store.
func (f *Files) Save(ctx context.Context, collection string, doc any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if collection == "" || strings.ContainsAny(collection, `/\`) || collection == "." || collection == ".." {
		return "", fmt.Errorf("store: files: invalid collection %q", collection)
	}

	rec := newRecord(collection, doc)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("store: files: encoding record: %w", err)
	}

	dir := filepath.Join(f.dir, collection)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("store: files: %w", err)
	}

	path := filepath.Join(dir, rec.ID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("store: files: writing record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("store: files: writing record: %w", err)
	}
	return rec.ID, nil
}

// Close implements Store.
func (f *Files) Close(context.Context) error { return nil }
