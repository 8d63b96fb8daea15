package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"healthlens_backend/internal/adapters"
	"healthlens_backend/internal/adapters/storage"
	"healthlens_backend/internal/analysis"
	"healthlens_backend/internal/catalog"
	"healthlens_backend/internal/events"
	apphttp "healthlens_backend/internal/http"
	"healthlens_backend/internal/http/router"
	"healthlens_backend/internal/measurements"
	"healthlens_backend/internal/profile"
	"healthlens_backend/migrations"
	"healthlens_backend/platform/ai/gemini"
	"healthlens_backend/platform/config"
	"healthlens_backend/platform/db"
	"healthlens_backend/platform/logger"
	platformredis "healthlens_backend/platform/redis"
	"healthlens_backend/platform/validator"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jackc/pgx/v5/pgxpool"
)

// analysisHistoryLimit bounds how much raw history is fetched for one
// analysis; the CSV projector caps per metric on top of this.
const analysisHistoryLimit = 500

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	var rdb *goredis.Client
	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		c, err := platformredis.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		rdb = c
		return nil
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()
	log.Info("redis connection established")

	// Shared validator instance for dependency injection
	val := validator.New()

	// Storage service for report image uploads (MinIO)
	var storageSvc storage.StorageService
	if cfg.IsMinIOEnabled() {
		svc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure report-images bucket", 5, 2*time.Second, func() error {
			return svc.EnsureBucketExists(ctx, cfg.GetMinioBucketReportImages())
		}); err != nil {
			log.Error("failed to ensure storage bucket exists", "error", err, "bucket", cfg.GetMinioBucketReportImages())
			panic("failed to ensure storage bucket exists: " + err.Error())
		}
		storageSvc = svc
		log.Info("storage service initialized", "reportImagesBucket", cfg.GetMinioBucketReportImages())
	} else {
		log.Warn("MINIO_ENDPOINT not configured; report image storage disabled")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	catalogModule := catalog.NewModule(pool, rdb, eventBus, val, cfg, log)
	catalogModule.RegisterHandlers(eventBus)

	profileModule := profile.NewModule(pool, val)

	catalogSource := adapters.NewCatalogMetricReader(catalogModule.Service())
	measurementsModule, err := measurements.NewModule(pool, catalogSource, storageSvc, eventBus, val, cfg, log)
	if err != nil {
		log.Error("failed to initialize measurements module", "error", err)
		panic("failed to initialize measurements module: " + err.Error())
	}
	if !cfg.IsExtractionEnabled() {
		log.Warn("MOONSHOT_API_KEY not configured; report extraction disabled")
	}

	modules := []apphttp.Module{
		catalogModule,
		profileModule,
		measurementsModule,
	}

	if cfg.GetGeminiAPIKey() != "" {
		model, err := gemini.NewClient(ctx, cfg)
		if err != nil {
			log.Error("failed to initialize generation client", "error", err)
			panic("failed to initialize generation client: " + err.Error())
		}

		historyReader := adapters.NewMeasurementHistoryReader(measurementsModule.Repository(), analysisHistoryLimit)
		subjectReader := adapters.NewProfileSubjectReader(profileModule.Service())
		analysisModule := analysis.NewModule(pool, model, historyReader, subjectReader, eventBus, val, cfg, log)
		modules = append(modules, analysisModule)
	} else {
		log.Warn("GEMINI_API_KEY not configured; health analysis disabled")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules:  modules,
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
