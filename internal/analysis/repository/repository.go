// Package repository persists health analysis records.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"healthlens_backend/platform/apperr"
)

// Record statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Record is one persisted analysis run. Completed records are immutable and
// feed the cache/rate gate; failed records keep the error code for diagnosis.
type Record struct {
	ID                   uuid.UUID  `db:"id"`
	UserID               uuid.UUID  `db:"user_id"`
	Status               string     `db:"status"`
	ErrorCode            *string    `db:"error_code"`
	MeasurementsSnapshot string     `db:"measurements_snapshot"`
	MetricsCount         int        `db:"metrics_count"`
	DateRangeStart       *time.Time `db:"date_range_start"`
	DateRangeEnd         *time.Time `db:"date_range_end"`
	ModelVersion         string     `db:"model_version"`
	PromptTokens         int        `db:"prompt_tokens"`
	CompletionTokens     int        `db:"completion_tokens"`
	TotalCostUSD         float64    `db:"total_cost_usd"`
	FullResponse         []byte     `db:"full_response"`
	CreatedAt            time.Time  `db:"created_at"`
}

// InsertParams contains data for persisting one analysis outcome.
type InsertParams struct {
	UserID               uuid.UUID
	Status               string
	ErrorCode            *string
	MeasurementsSnapshot string
	MetricsCount         int
	DateRangeStart       *time.Time
	DateRangeEnd         *time.Time
	ModelVersion         string
	PromptTokens         int
	CompletionTokens     int
	TotalCostUSD         float64
	FullResponse         []byte
}

// Repository defines analysis record storage operations.
type Repository interface {
	Insert(ctx context.Context, params InsertParams) (Record, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (Record, error)
	LatestCompleted(ctx context.Context, userID uuid.UUID) (*Record, error)
	CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Record, int, error)
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

const analysisNotFoundMessage = "analysis not found"

const recordColumns = `id, user_id, status, error_code, measurements_snapshot, metrics_count,
	date_range_start, date_range_end, model_version, prompt_tokens, completion_tokens,
	total_cost_usd, full_response, created_at`

// Repo implements Repository on Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new analysis repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	if err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Status, &rec.ErrorCode, &rec.MeasurementsSnapshot,
		&rec.MetricsCount, &rec.DateRangeStart, &rec.DateRangeEnd, &rec.ModelVersion,
		&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalCostUSD, &rec.FullResponse,
		&rec.CreatedAt,
	); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Insert persists one analysis outcome.
func (r *Repo) Insert(ctx context.Context, params InsertParams) (Record, error) {
	query := fmt.Sprintf(`
		INSERT INTO health_analyses (
			user_id, status, error_code, measurements_snapshot, metrics_count,
			date_range_start, date_range_end, model_version, prompt_tokens,
			completion_tokens, total_cost_usd, full_response
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING %s`, recordColumns)

	rec, err := scanRecord(r.pool.QueryRow(ctx, query,
		params.UserID, params.Status, params.ErrorCode, params.MeasurementsSnapshot,
		params.MetricsCount, params.DateRangeStart, params.DateRangeEnd,
		params.ModelVersion, params.PromptTokens, params.CompletionTokens,
		params.TotalCostUSD, params.FullResponse,
	))
	if err != nil {
		return Record{}, fmt.Errorf("insert analysis: %w", err)
	}
	return rec, nil
}

// GetByID returns one record owned by the user.
func (r *Repo) GetByID(ctx context.Context, userID, id uuid.UUID) (Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM health_analyses WHERE id = $1 AND user_id = $2`, recordColumns)

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, apperr.NotFound(analysisNotFoundMessage)
		}
		return Record{}, fmt.Errorf("get analysis: %w", err)
	}
	return rec, nil
}

// LatestCompleted returns the user's most recent completed record, or nil if
// none exists.
func (r *Repo) LatestCompleted(ctx context.Context, userID uuid.UUID) (*Record, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM health_analyses
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`, recordColumns)

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, userID, StatusCompleted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest completed analysis: %w", err)
	}
	return &rec, nil
}

// CountCompletedSince counts completed records created at or after since.
func (r *Repo) CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM health_analyses
		WHERE user_id = $1 AND status = $2 AND created_at >= $3`,
		userID, StatusCompleted, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed analyses: %w", err)
	}
	return count, nil
}

// List returns the user's records newest first with a total count.
func (r *Repo) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Record, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM health_analyses WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM health_analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, recordColumns)

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan analysis: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate analyses: %w", err)
	}
	return records, total, nil
}

// DeleteFailedBefore removes failed records created before cutoff.
func (r *Repo) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM health_analyses WHERE status = $1 AND created_at < $2`,
		StatusFailed, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete failed analyses: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteCompletedBefore removes completed records created before cutoff.
func (r *Repo) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM health_analyses WHERE status = $1 AND created_at < $2`,
		StatusCompleted, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete completed analyses: %w", err)
	}
	return tag.RowsAffected(), nil
}
