package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/chaz8081/gostt-transcriber/internal/config"
)

type doc struct {
	Name  string  `json:"name" bson:"name"`
	Score float64 `json:"score" bson:"score"`
}

func TestFilesSave(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFiles(dir)
	if err != nil {
		t.Fatalf("NewFiles() error = %v", err)
	}

	id, err := s.Save(context.Background(), "speech_analysis", doc{Name: "a", Score: 1.5})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("Save() id %q is not a uuid: %v", id, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "speech_analysis", id+".json"))
	if err != nil {
		t.Fatalf("reading record: %v", err)
	}

	var got struct {
		ID         string `json:"id"`
		Collection string `json:"collection"`
		Data       doc    `json:"data"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decoding record: %v", err)
	}
	if got.ID != id || got.Collection != "speech_analysis" {
		t.Errorf("record header = %+v", got)
	}
	if got.Data.Name != "a" || got.Data.Score != 1.5 {
		t.Errorf("record data = %+v", got.Data)
	}
}

func TestFilesSaveUniqueIDs(t *testing.T) {
	s, err := NewFiles(t.TempDir())
	if err != nil {
		t.Fatalf("NewFiles() error = %v", err)
	}
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		id, err := s.Save(context.Background(), "c", doc{})
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestFilesSaveRejectsBadCollection(t *testing.T) {
	s, err := NewFiles(t.TempDir())
	if err != nil {
		t.Fatalf("NewFiles() error = %v", err)
	}
	for _, c := range []string{"", "..", "a/b", `a\b`} {
		if _, err := s.Save(context.Background(), c, doc{}); err == nil {
			t.Errorf("Save(%q) should fail", c)
		}
	}
}

func TestFilesSaveCanceledContext(t *testing.T) {
	s, err := NewFiles(t.TempDir())
	if err != nil {
		t.Fatalf("NewFiles() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Save(ctx, "c", doc{}); err == nil {
		t.Error("Save() with canceled context should fail")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(context.Background(), config.StoreConfig{Backend: "none"}, dir)
	if err != nil || s != nil {
		t.Errorf("Open(none) = %v, %v; want nil, nil", s, err)
	}

	s, err = Open(context.Background(), config.StoreConfig{Backend: "file"}, dir)
	if err != nil {
		t.Fatalf("Open(file) error = %v", err)
	}
	if _, ok := s.(*Files); !ok {
		t.Errorf("Open(file) returned %T, want *Files", s)
	}

	if _, err := Open(context.Background(), config.StoreConfig{Backend: "redis"}, dir); err == nil {
		t.Error("Open(redis) should fail")
	}

	if _, err := Open(context.Background(), config.StoreConfig{Backend: "mongo"}, dir); err == nil {
		t.Error("Open(mongo) without uri should fail")
	}
}

func TestMongoSave(t *testing.T) {
	uri := os.Getenv("GOSTT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("GOSTT_TEST_MONGO_URI not set, skipping mongo test")
	}

	ctx := context.Background()
	m, err := NewMongo(ctx, uri, "gostt_test")
	if err != nil {
		t.Fatalf("NewMongo() error = %v", err)
	}
	defer func() { _ = m.Close(ctx) }()

	id, err := m.Save(ctx, "speech_analysis", doc{Name: "mongo", Score: 2})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id == "" {
		t.Error("Save() returned empty id")
	}
}
