// Package cache provides a TTL snapshot cache for the metric catalog.
// The whole catalog is small, so it is cached as one Redis value and
// rebuilt at most once per TTL window.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"healthlens_backend/internal/catalog/repository"
	"healthlens_backend/platform/logger"
)

const snapshotKey = "catalog:snapshot"

// Snapshot is the cached catalog, keyed by canonical metric key.
type Snapshot struct {
	Metrics  map[string]repository.Metric `json:"metrics"`
	LoadedAt time.Time                    `json:"loadedAt"`
}

// Get returns the metric for a canonical key, if present.
func (s *Snapshot) Get(metricKey string) (repository.Metric, bool) {
	m, ok := s.Metrics[metricKey]
	return m, ok
}

// Keys returns all canonical metric keys in the snapshot.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Metrics))
	for k := range s.Metrics {
		keys = append(keys, k)
	}
	return keys
}

// Loader fetches the full catalog from the source of truth.
type Loader interface {
	ListAll(ctx context.Context) ([]repository.Metric, error)
}

// Cache serves catalog snapshots from Redis, falling back to the loader when
// the entry is missing or expired. Concurrent rebuilds collapse into one
// loader call via singleflight.
type Cache struct {
	rdb    *redis.Client
	loader Loader
	ttl    time.Duration
	log    *logger.Logger
	group  singleflight.Group
}

// New creates a catalog cache with the given TTL.
func New(rdb *redis.Client, loader Loader, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{rdb: rdb, loader: loader, ttl: ttl, log: log}
}

// Snapshot returns the current catalog snapshot.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, snapshotKey).Bytes()
		if err == nil {
			var snap Snapshot
			if jsonErr := json.Unmarshal(raw, &snap); jsonErr == nil {
				return &snap, nil
			}
			// Corrupt entry; rebuild below.
			c.log.Warn("discarding unreadable catalog snapshot")
		} else if !errors.Is(err, redis.Nil) {
			// Redis being down must not take the pipeline down with it.
			c.log.Warn("catalog cache read failed, loading from database", "error", err)
		}
	}

	result, err, _ := c.group.Do(snapshotKey, func() (interface{}, error) {
		return c.rebuild(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Snapshot), nil
}

func (c *Cache) rebuild(ctx context.Context) (*Snapshot, error) {
	metrics, err := c.loader.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild catalog snapshot: %w", err)
	}

	snap := &Snapshot{
		Metrics:  make(map[string]repository.Metric, len(metrics)),
		LoadedAt: time.Now().UTC(),
	}
	for _, m := range metrics {
		snap.Metrics[m.MetricKey] = m
	}

	if c.rdb != nil {
		raw, err := json.Marshal(snap)
		if err == nil {
			if err := c.rdb.Set(ctx, snapshotKey, raw, c.ttl).Err(); err != nil {
				c.log.Warn("catalog cache write failed", "error", err)
			}
		}
	}
	return snap, nil
}

// Invalidate drops the cached snapshot so the next read rebuilds it.
// Called when an admin changes the catalog.
func (c *Cache) Invalidate(ctx context.Context) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, snapshotKey).Err(); err != nil {
		c.log.Warn("catalog cache invalidation failed", "error", err)
	}
}
