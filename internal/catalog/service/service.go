// Package service contains catalog business logic.
package service

import (
	"context"
	"math"

	"github.com/google/uuid"

	"healthlens_backend/internal/catalog/cache"
	"healthlens_backend/internal/catalog/repository"
	"healthlens_backend/internal/catalog/transport"
	"healthlens_backend/internal/events"
	"healthlens_backend/platform/apperr"
	"healthlens_backend/platform/logger"
)

// Service implements catalog use cases.
type Service struct {
	repo  repository.Repository
	cache *cache.Cache
	bus   events.Bus
	log   *logger.Logger
}

// New creates a new catalog service.
func New(repo repository.Repository, snapshotCache *cache.Cache, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, cache: snapshotCache, bus: bus, log: log}
}

// Snapshot exposes the cached catalog for other modules (normalization,
// validation). Reads go through the TTL cache, not the database.
func (s *Service) Snapshot(ctx context.Context) (*cache.Snapshot, error) {
	return s.cache.Snapshot(ctx)
}

// ListMetrics lists catalog metrics with filters and pagination.
func (s *Service) ListMetrics(ctx context.Context, req transport.ListMetricsRequest) (transport.MetricListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	items, total, err := s.repo.ListMetrics(ctx, repository.ListMetricsParams{
		Search:   req.Search,
		Category: req.Category,
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	})
	if err != nil {
		return transport.MetricListResponse{}, err
	}

	resp := transport.MetricListResponse{
		Items:      make([]transport.MetricResponse, 0, len(items)),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}
	for _, m := range items {
		resp.Items = append(resp.Items, toMetricResponse(m))
	}
	return resp, nil
}

// GetMetricByKey retrieves a single catalog metric via the cache.
func (s *Service) GetMetricByKey(ctx context.Context, metricKey string) (transport.MetricResponse, error) {
	snap, err := s.cache.Snapshot(ctx)
	if err != nil {
		return transport.MetricResponse{}, err
	}
	m, ok := snap.Get(metricKey)
	if !ok {
		return transport.MetricResponse{}, apperr.NotFound("catalog metric not found")
	}
	return toMetricResponse(m), nil
}

// CreateMetric creates a catalog metric (admin only).
func (s *Service) CreateMetric(ctx context.Context, actorID uuid.UUID, req transport.CreateMetricRequest) (transport.MetricResponse, error) {
	if req.MaxValue <= req.MinValue {
		return transport.MetricResponse{}, apperr.Validation("maxValue must be greater than minValue")
	}

	m, err := s.repo.CreateMetric(ctx, repository.CreateMetricParams{
		MetricKey:        req.MetricKey,
		DisplayName:      req.DisplayName,
		Unit:             req.Unit,
		MinValue:         req.MinValue,
		MaxValue:         req.MaxValue,
		HealthyMinMale:   req.HealthyMinMale,
		HealthyMaxMale:   req.HealthyMaxMale,
		HealthyMinFemale: req.HealthyMinFemale,
		HealthyMaxFemale: req.HealthyMaxFemale,
		Category:         req.Category,
		Description:      req.Description,
		SortOrder:        req.SortOrder,
	})
	if err != nil {
		return transport.MetricResponse{}, err
	}

	s.publishChange(ctx, m.MetricKey, actorID, "created")
	return toMetricResponse(m), nil
}

// UpdateMetric updates a catalog metric (admin only).
func (s *Service) UpdateMetric(ctx context.Context, actorID uuid.UUID, id uuid.UUID, req transport.UpdateMetricRequest) (transport.MetricResponse, error) {
	if req.MinValue != nil && req.MaxValue != nil && *req.MaxValue <= *req.MinValue {
		return transport.MetricResponse{}, apperr.Validation("maxValue must be greater than minValue")
	}

	m, err := s.repo.UpdateMetric(ctx, repository.UpdateMetricParams{
		ID:               id,
		DisplayName:      req.DisplayName,
		Unit:             req.Unit,
		MinValue:         req.MinValue,
		MaxValue:         req.MaxValue,
		HealthyMinMale:   req.HealthyMinMale,
		HealthyMaxMale:   req.HealthyMaxMale,
		HealthyMinFemale: req.HealthyMinFemale,
		HealthyMaxFemale: req.HealthyMaxFemale,
		Category:         req.Category,
		Description:      req.Description,
		SortOrder:        req.SortOrder,
	})
	if err != nil {
		return transport.MetricResponse{}, err
	}

	s.publishChange(ctx, m.MetricKey, actorID, "updated")
	return toMetricResponse(m), nil
}

// DeleteMetric deletes a catalog metric (admin only). Existing measurements
// referencing the key are kept; only future normalization stops matching.
func (s *Service) DeleteMetric(ctx context.Context, actorID uuid.UUID, id uuid.UUID) error {
	metricKey, err := s.repo.DeleteMetric(ctx, id)
	if err != nil {
		return err
	}

	s.publishChange(ctx, metricKey, actorID, "deleted")
	return nil
}

// InvalidateCache drops the snapshot. Wired as the CatalogChanged handler.
func (s *Service) InvalidateCache(ctx context.Context) {
	s.cache.Invalidate(ctx)
}

func (s *Service) publishChange(ctx context.Context, metricKey string, actorID uuid.UUID, action string) {
	s.bus.Publish(ctx, events.CatalogChanged{
		BaseEvent: events.NewBaseEvent(),
		MetricKey: metricKey,
		ChangedBy: actorID,
		Action:    action,
	})
}

func toMetricResponse(m repository.Metric) transport.MetricResponse {
	return transport.MetricResponse{
		ID:               m.ID,
		MetricKey:        m.MetricKey,
		DisplayName:      m.DisplayName,
		Unit:             m.Unit,
		MinValue:         m.MinValue,
		MaxValue:         m.MaxValue,
		HealthyMinMale:   m.HealthyMinMale,
		HealthyMaxMale:   m.HealthyMaxMale,
		HealthyMinFemale: m.HealthyMinFemale,
		HealthyMaxFemale: m.HealthyMaxFemale,
		Category:         m.Category,
		Description:      m.Description,
		SortOrder:        m.SortOrder,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
