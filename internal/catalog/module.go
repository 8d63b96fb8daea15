// Package catalog provides the metric catalog bounded context module.
package catalog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"healthlens_backend/internal/catalog/cache"
	"healthlens_backend/internal/catalog/handler"
	"healthlens_backend/internal/catalog/repository"
	"healthlens_backend/internal/catalog/service"
	"healthlens_backend/internal/events"
	apphttp "healthlens_backend/internal/http"
	"healthlens_backend/platform/config"
	"healthlens_backend/platform/logger"
	"healthlens_backend/platform/validator"
)

// Module is the catalog bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the catalog module.
func NewModule(pool *pgxpool.Pool, rdb *goredis.Client, bus events.Bus, val *validator.Validator, cfg config.PipelineConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	snapshotCache := cache.New(rdb, repo, cfg.GetCatalogCacheTTL(), log)
	svc := service.New(repo, snapshotCache, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "catalog"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts catalog routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Protected read-only endpoints
	ctx.Protected.GET("/catalog/metrics", m.handler.ListMetrics)
	ctx.Protected.GET("/catalog/metrics/:key", m.handler.GetMetricByKey)

	// Admin CRUD endpoints
	adminGroup := ctx.Admin.Group("/catalog")
	adminGroup.POST("/metrics", m.handler.CreateMetric)
	adminGroup.PUT("/metrics/:id", m.handler.UpdateMetric)
	adminGroup.DELETE("/metrics/:id", m.handler.DeleteMetric)
}

// RegisterHandlers subscribes to domain events for cache invalidation.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.CatalogChanged{}.EventName(), m)
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch event.(type) {
	case events.CatalogChanged:
		m.service.InvalidateCache(ctx)
		return nil
	default:
		return nil
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
