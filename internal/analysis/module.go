// Package analysis provides the health analysis bounded context module.
package analysis

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"healthlens_backend/internal/analysis/generator"
	"healthlens_backend/internal/analysis/handler"
	"healthlens_backend/internal/analysis/repository"
	"healthlens_backend/internal/analysis/service"
	"healthlens_backend/internal/events"
	apphttp "healthlens_backend/internal/http"
	"healthlens_backend/platform/config"
	"healthlens_backend/platform/logger"
	"healthlens_backend/platform/validator"
)

// Module is the analysis bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the analysis module. The measurement and
// profile sources come from other contexts via adapters.
func NewModule(
	pool *pgxpool.Pool,
	model generator.TextModel,
	measurements service.MeasurementSource,
	profiles service.ProfileSource,
	bus events.Bus,
	val *validator.Validator,
	cfg *config.Config,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	gen := generator.New(model, cfg, log)
	svc := service.New(repo, gen, measurements, profiles, bus, cfg, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "analysis"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts analysis routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/analyses")
	group.POST("", m.handler.Request)
	group.GET("", m.handler.List)
	group.GET("/:id", m.handler.Get)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
