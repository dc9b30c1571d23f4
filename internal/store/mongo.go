package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoConnectTimeout = 10 * time.Second

// Mongo inserts records into a MongoDB database, one collection per name.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to uri and pings the server.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("store: mongo: mongo_uri is required")
	}
	if database == "" {
		return nil, fmt.Errorf("store: mongo: database is required")
	}

	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("store: mongo: ping: %w", err)
	}

	slog.Info("connected to mongo", "database", database)
	return &Mongo{client: client, db: client.Database(database)}, nil
}

// Save implements Store.
func (m *Mongo) Save(ctx context.Context, collection string, doc any) (string, error) {
	rec := newRecord(collection, doc)
	if _, err := m.db.Collection(collection).InsertOne(ctx, rec); err != nil {
		return "", fmt.Errorf("store: mongo: insert into %s: %w", collection, err)
	}
	return rec.ID, nil
}

// Close implements Store.
func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("store: mongo: disconnect: %w", err)
	}
	return nil
}
