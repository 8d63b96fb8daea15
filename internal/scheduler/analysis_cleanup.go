package scheduler

import (
	"context"
	"time"

	"healthlens_backend/platform/logger"
)

const (
	defaultCleanupInterval            = time.Hour
	defaultFailedAnalysisRetention    = 30 * 24 * time.Hour
	defaultCompletedAnalysisRetention = 180 * 24 * time.Hour
)

// AnalysisCleanup periodically enqueues retention cleanup of old analysis
// records. Failed runs are kept briefly for diagnosis; completed ones are
// kept long enough to stay useful as history.
type AnalysisCleanup struct {
	client             *Client
	log                *logger.Logger
	interval           time.Duration
	failedRetention    time.Duration
	completedRetention time.Duration
}

func NewAnalysisCleanup(client *Client, log *logger.Logger, interval, failedRetention, completedRetention time.Duration) *AnalysisCleanup {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	if failedRetention <= 0 {
		failedRetention = defaultFailedAnalysisRetention
	}
	if completedRetention <= 0 {
		completedRetention = defaultCompletedAnalysisRetention
	}

	return &AnalysisCleanup{
		client:             client,
		log:                log,
		interval:           interval,
		failedRetention:    failedRetention,
		completedRetention: completedRetention,
	}
}

func (c *AnalysisCleanup) Run(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}

	c.enqueue(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.enqueue(ctx)
		}
	}
}

func (c *AnalysisCleanup) enqueue(ctx context.Context) {
	now := time.Now()
	err := c.client.EnqueueAnalysisCleanup(ctx, AnalysisCleanupPayload{
		FailedBefore:    now.Add(-c.failedRetention),
		CompletedBefore: now.Add(-c.completedRetention),
	})
	if err != nil {
		c.log.Warn("failed to enqueue analysis cleanup", "error", err)
	}
}
