// Package store persists analysis records to a document backend.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chaz8081/gostt-transcriber/internal/config"
)

// Store saves documents into named collections. Records are write-only:
// there is no read or update path.
type Store interface {
	// Save inserts doc into collection and returns the generated record ID.
	Save(ctx context.Context, collection string, doc any) (string, error)
	Close(ctx context.Context) error
}

// Record is the envelope written for every saved document.
type Record struct {
	ID         string    `json:"id" bson:"_id"`
	Collection string    `json:"collection" bson:"collection"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	Data       any       `json:"data" bson:"data"`
}

func newRecord(collection string, doc any) Record {
	return Record{
		ID:         uuid.NewString(),
		Collection: collection,
		CreatedAt:  time.Now().UTC(),
		Data:       doc,
	}
}

// Open returns the backend selected by cfg. The "none" backend (or an empty
// one) returns a nil Store, which callers treat as persistence disabled.
func Open(ctx context.Context, cfg config.StoreConfig, recordsDir string) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "file":
		f, err := NewFiles(recordsDir)
		if err != nil {
			return nil, err
		}
		return f, nil
	case "mongo":
		m, err := NewMongo(ctx, cfg.MongoURI, cfg.Database)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
