// Package measurements provides the measurement ingestion bounded context module.
package measurements

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"healthlens_backend/internal/adapters/storage"
	"healthlens_backend/internal/events"
	apphttp "healthlens_backend/internal/http"
	"healthlens_backend/internal/measurements/agent"
	"healthlens_backend/internal/measurements/domain"
	"healthlens_backend/internal/measurements/handler"
	"healthlens_backend/internal/measurements/repository"
	"healthlens_backend/internal/measurements/service"
	"healthlens_backend/platform/config"
	"healthlens_backend/platform/logger"
	"healthlens_backend/platform/validator"
)

// Module is the measurements bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the measurements module. store may be nil
// when object storage is not configured; extraction is disabled when no
// Moonshot API key is set.
func NewModule(
	pool *pgxpool.Pool,
	catalog service.CatalogSource,
	store storage.StorageService,
	bus events.Bus,
	val *validator.Validator,
	cfg *config.Config,
	log *logger.Logger,
) (*Module, error) {
	repo := repository.New(pool)

	aliases, err := domain.LoadAliasTable(cfg.MetricAliasFile)
	if err != nil {
		return nil, err
	}
	normalizer := domain.NewNormalizer(aliases, cfg.GetFuzzyMatchThreshold())
	pipeline := domain.NewPipeline(normalizer, domain.Bands{
		High:   cfg.GetDuplicateBandHigh(),
		Medium: cfg.GetDuplicateBandMedium(),
		Low:    cfg.GetDuplicateBandLow(),
	})

	var extractor service.Extractor
	if cfg.IsExtractionEnabled() {
		ex, err := agent.NewReportExtractor(cfg, log)
		if err != nil {
			return nil, err
		}
		extractor = ex
	}

	bucket := cfg.GetMinioBucketReportImages()
	svc := service.New(repo, pipeline, catalog, extractor, store, bucket, bus, cfg, log)
	h := handler.New(svc, val, cfg.GetMinIOMaxFileSize())

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "measurements"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts measurement routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/measurements")
	group.POST("/extract", m.handler.Extract)
	group.POST("/confirm", m.handler.Confirm)
	group.POST("", m.handler.Create)
	group.GET("", m.handler.List)
	group.GET("/:id", m.handler.Get)
	group.GET("/:id/image-url", m.handler.ReportImage)
	group.PUT("/:id", m.handler.Update)
	group.DELETE("/:id", m.handler.Delete)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
