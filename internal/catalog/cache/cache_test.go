package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"healthlens_backend/internal/catalog/repository"
	"healthlens_backend/platform/logger"
)

type fakeLoader struct {
	calls   int
	metrics []repository.Metric
}

func (f *fakeLoader) ListAll(ctx context.Context) ([]repository.Metric, error) {
	f.calls++
	return f.metrics, nil
}

func testMetrics() []repository.Metric {
	healthyMin, healthyMax := 70.0, 100.0
	return []repository.Metric{
		{MetricKey: "weight", DisplayName: "Weight", Unit: "kg", MinValue: 20, MaxValue: 300, SortOrder: 10},
		{
			MetricKey: "glucose", DisplayName: "Glucose", Unit: "mg/dL", MinValue: 20, MaxValue: 600,
			HealthyMinMale: &healthyMin, HealthyMaxMale: &healthyMax,
			HealthyMinFemale: &healthyMin, HealthyMaxFemale: &healthyMax,
			SortOrder: 20,
		},
	}
}

func newTestCache(t *testing.T, loader *fakeLoader, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, loader, ttl, logger.New("test")), mr
}

func TestSnapshotLoadsOnceWithinTTL(t *testing.T) {
	loader := &fakeLoader{metrics: testMetrics()}
	c, _ := newTestCache(t, loader, 15*time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		snap, err := c.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}
		if len(snap.Metrics) != 2 {
			t.Fatalf("snapshot has %d metrics, want 2", len(snap.Metrics))
		}
	}

	if loader.calls != 1 {
		t.Fatalf("loader called %d times, want 1", loader.calls)
	}
}

func TestSnapshotRebuildsAfterExpiry(t *testing.T) {
	loader := &fakeLoader{metrics: testMetrics()}
	c, mr := newTestCache(t, loader, 15*time.Minute)
	ctx := context.Background()

	if _, err := c.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	mr.FastForward(16 * time.Minute)

	if _, err := c.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot() after expiry error = %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("loader called %d times after expiry, want 2", loader.calls)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	loader := &fakeLoader{metrics: testMetrics()}
	c, _ := newTestCache(t, loader, 15*time.Minute)
	ctx := context.Background()

	if _, err := c.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	c.Invalidate(ctx)

	loader.metrics = append(loader.metrics, repository.Metric{
		MetricKey: "heart_rate", DisplayName: "Heart Rate", Unit: "bpm", MinValue: 20, MaxValue: 250,
	})

	snap, err := c.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() after invalidation error = %v", err)
	}
	if _, ok := snap.Get("heart_rate"); !ok {
		t.Fatal("snapshot missing metric added after invalidation")
	}
	if loader.calls != 2 {
		t.Fatalf("loader called %d times, want 2", loader.calls)
	}
}

func TestSnapshotLookup(t *testing.T) {
	loader := &fakeLoader{metrics: testMetrics()}
	c, _ := newTestCache(t, loader, time.Minute)

	snap, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	m, ok := snap.Get("glucose")
	if !ok {
		t.Fatal("expected glucose in snapshot")
	}
	if m.Unit != "mg/dL" {
		t.Fatalf("glucose unit = %q, want mg/dL", m.Unit)
	}
	// Healthy reference ranges and ordering survive the Redis round trip.
	if m.HealthyMinMale == nil || *m.HealthyMinMale != 70.0 {
		t.Fatalf("healthy min (male) = %v, want 70", m.HealthyMinMale)
	}
	if m.HealthyMaxFemale == nil || *m.HealthyMaxFemale != 100.0 {
		t.Fatalf("healthy max (female) = %v, want 100", m.HealthyMaxFemale)
	}
	if m.SortOrder != 20 {
		t.Fatalf("sort order = %d, want 20", m.SortOrder)
	}
	if _, ok := snap.Get("cholesterol"); ok {
		t.Fatal("did not expect cholesterol in snapshot")
	}
}
