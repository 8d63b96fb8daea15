package scheduler

import (
	"context"
	"fmt"

	"healthlens_backend/internal/analysis/repository"
	"healthlens_backend/platform/config"
	"healthlens_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Worker consumes background tasks from the shared queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	repo   repository.Repository
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		repo:   repository.New(pool),
		log:    log,
	}

	mux.HandleFunc(TaskAnalysisCleanup, w.handleAnalysisCleanup)

	return w, nil
}

func (w *Worker) handleAnalysisCleanup(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAnalysisCleanupPayload(task)
	if err != nil {
		return err
	}

	failed, err := w.repo.DeleteFailedBefore(ctx, payload.FailedBefore)
	if err != nil {
		return err
	}
	completed, err := w.repo.DeleteCompletedBefore(ctx, payload.CompletedBefore)
	if err != nil {
		return err
	}

	if failed > 0 || completed > 0 {
		w.log.Info("analysis cleanup deleted records",
			"failed", failed, "completed", completed)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
