package transcribe

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/chaz8081/gostt-transcriber/internal/metrics"
	"github.com/chaz8081/gostt-transcriber/internal/models"
)

// ModelCache holds at most one loaded model per key. Entries are never
// evicted; Clear drops them all.
type ModelCache struct {
	load    Loader
	metrics *metrics.Metrics

	mu     sync.RWMutex
	models map[models.Key]Model
	gen    uint64 // bumped by Clear
	group  singleflight.Group
}

// NewModelCache returns an empty cache that builds models with load.
func NewModelCache(load Loader, m *metrics.Metrics) *ModelCache {
	return &ModelCache{
		load:    load,
		metrics: m,
		models:  make(map[models.Key]Model),
	}
}

// Get returns the cached model for key, loading it on first use. Concurrent
// first calls for the same key share one load.
func (c *ModelCache) Get(key models.Key) (Model, error) {
	if m, ok := c.lookup(key); ok {
		return m, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A load that finished between lookup and Do has already stored it.
		if m, ok := c.lookup(key); ok {
			return m, nil
		}

		for {
			c.mu.RLock()
			gen := c.gen
			c.mu.RUnlock()

			slog.Info("loading model", "key", key.String())
			m, err := c.load(key)
			if err != nil {
				return nil, fmt.Errorf("transcribe: load model %s: %w", key, err)
			}

			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				slog.Info("cache cleared during load, reloading", "key", key.String())
				if err := m.Close(); err != nil {
					slog.Warn("closing stale model", "key", key.String(), "error", err)
				}
				continue
			}
			c.models[key] = m
			n := len(c.models)
			c.mu.Unlock()

			c.metrics.RecordModelLoad(string(key.Size), string(key.Device), n)
			return m, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return v.(Model), nil
}

func (c *ModelCache) lookup(key models.Key) (Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[key]
	return m, ok
}

// Len returns the number of cached models.
func (c *ModelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

// Clear closes and drops every cached model and returns freed memory to the
// OS. Later Get calls load from scratch. A load already in flight when Clear
// runs is discarded and redone, so no model built before Clear stays cached.
func (c *ModelCache) Clear() {
	c.mu.Lock()
	old := c.models
	c.models = make(map[models.Key]Model)
	c.gen++
	c.mu.Unlock()

	for key, m := range old {
		if err := m.Close(); err != nil {
			slog.Warn("closing cached model", "key", key.String(), "error", err)
		}
	}
	c.metrics.SetCachedModels(0)
	debug.FreeOSMemory()
}
