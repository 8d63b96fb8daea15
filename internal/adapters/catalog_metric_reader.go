package adapters

import (
	"context"
	"fmt"

	catsvc "healthlens_backend/internal/catalog/service"
	"healthlens_backend/internal/measurements/domain"
	msvc "healthlens_backend/internal/measurements/service"
)

// CatalogMetricReader adapts the catalog snapshot cache for the measurements
// domain, satisfying service.CatalogSource.
type CatalogMetricReader struct {
	catalog *catsvc.Service
}

// NewCatalogMetricReader creates a new catalog metric reader adapter.
func NewCatalogMetricReader(catalog *catsvc.Service) *CatalogMetricReader {
	return &CatalogMetricReader{catalog: catalog}
}

// Catalog returns a point-in-time metric lookup backed by the shared snapshot.
func (a *CatalogMetricReader) Catalog(ctx context.Context) (domain.Catalog, error) {
	snap, err := a.catalog.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog adapter: snapshot: %w", err)
	}

	metrics := make(map[string]domain.CatalogMetric, len(snap.Metrics))
	for key, m := range snap.Metrics {
		metrics[key] = domain.CatalogMetric{
			MetricKey:   m.MetricKey,
			DisplayName: m.DisplayName,
			Unit:        m.Unit,
			MinValue:    m.MinValue,
			MaxValue:    m.MaxValue,
		}
	}

	return metricLookup(metrics), nil
}

// metricLookup is an immutable map-backed domain.Catalog.
type metricLookup map[string]domain.CatalogMetric

func (l metricLookup) Get(metricKey string) (domain.CatalogMetric, bool) {
	m, ok := l[metricKey]
	return m, ok
}

func (l metricLookup) Keys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	return keys
}

// Compile-time check that CatalogMetricReader implements service.CatalogSource.
var _ msvc.CatalogSource = (*CatalogMetricReader)(nil)
