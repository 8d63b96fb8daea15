// Package repository persists user measurements.
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

// Measurement is one persisted metric reading.
type Measurement struct {
	ID         uuid.UUID  `db:"id"`
	UserID     uuid.UUID  `db:"user_id"`
	MetricKey  string     `db:"metric_key"`
	Value      float64    `db:"value"`
	Unit       string     `db:"unit"`
	MeasuredAt time.Time  `db:"measured_at"`
	Source     string     `db:"source"`
	FileKey    *string    `db:"file_key"`
	Confidence *float64   `db:"confidence"`
	Notes      *string    `db:"notes"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// InsertParams contains data for persisting one measurement.
type InsertParams struct {
	UserID     uuid.UUID
	MetricKey  string
	Value      float64
	Unit       string
	MeasuredAt time.Time
	Source     string
	FileKey    *string
	Confidence *float64
	Notes      *string
}

// ListParams defines filters for listing a user's measurements.
type ListParams struct {
	UserID    uuid.UUID
	MetricKey string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// UpdateParams contains data for correcting a measurement.
type UpdateParams struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Value      *float64
	Unit       *string
	MeasuredAt *time.Time
	Notes      *string
}

// Repository defines measurement storage operations.
type Repository interface {
	InsertBatch(ctx context.Context, batch []InsertParams) ([]Measurement, error)
	List(ctx context.Context, params ListParams) ([]Measurement, int, error)
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]Measurement, error)
	ListRecentByMetrics(ctx context.Context, userID uuid.UUID, metricKeys []string, perMetricLimit int) ([]Measurement, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (Measurement, error)
	Update(ctx context.Context, params UpdateParams) (Measurement, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

const measurementNotFoundMessage = "measurement not found"

const measurementColumns = `id, user_id, metric_key, value, unit, measured_at, source, file_key, confidence, notes, created_at, updated_at`

// Repo implements Repository on Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new measurements repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

func scanMeasurement(row pgx.Row) (Measurement, error) {
	var m Measurement
	if err := row.Scan(
		&m.ID, &m.UserID, &m.MetricKey, &m.Value, &m.Unit, &m.MeasuredAt,
		&m.Source, &m.FileKey, &m.Confidence, &m.Notes, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return Measurement{}, err
	}
	return m, nil
}

// InsertBatch persists a confirmed batch in one transaction. All rows land or
// none do.
func (r *Repo) InsertBatch(ctx context.Context, batch []InsertParams) ([]Measurement, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := fmt.Sprintf(`
		INSERT INTO measurements (user_id, metric_key, value, unit, measured_at, source, file_key, confidence, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s`, measurementColumns)

	inserted := make([]Measurement, 0, len(batch))
	for _, p := range batch {
		m, err := scanMeasurement(tx.QueryRow(ctx, query,
			p.UserID, p.MetricKey, p.Value, p.Unit, p.MeasuredAt, p.Source, p.FileKey, p.Confidence, p.Notes,
		))
		if err != nil {
			return nil, fmt.Errorf("insert measurement: %w", err)
		}
		inserted = append(inserted, m)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit insert batch: %w", err)
	}
	return inserted, nil
}

// List returns a user's measurements with filters and pagination.
func (r *Repo) List(ctx context.Context, params ListParams) ([]Measurement, int, error) {
	whereClause := "user_id = $1"
	args := []interface{}{params.UserID}
	argIdx := 2

	if params.MetricKey != "" {
		whereClause += fmt.Sprintf(" AND metric_key = $%d", argIdx)
		args = append(args, params.MetricKey)
		argIdx++
	}
	if params.From != nil {
		whereClause += fmt.Sprintf(" AND measured_at >= $%d", argIdx)
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		whereClause += fmt.Sprintf(" AND measured_at <= $%d", argIdx)
		args = append(args, *params.To)
		argIdx++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM measurements WHERE %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count measurements: %w", err)
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM measurements
		WHERE %s
		ORDER BY measured_at DESC, created_at DESC
		LIMIT $%d OFFSET $%d`, measurementColumns, whereClause, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list measurements: %w", err)
	}
	defer rows.Close()

	items := make([]Measurement, 0)
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan measurement: %w", err)
		}
		items = append(items, m)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate measurements: %w", rows.Err())
	}
	return items, total, nil
}

// ListRecent returns the most recent measurements across all metrics, used by
// duplicate detection and analysis projection.
func (r *Repo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]Measurement, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM measurements
		WHERE user_id = $1
		ORDER BY measured_at DESC, created_at DESC
		LIMIT $2`, measurementColumns)

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent measurements: %w", err)
	}
	defer rows.Close()

	items := make([]Measurement, 0)
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		items = append(items, m)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate recent measurements: %w", rows.Err())
	}
	return items, nil
}

// ListRecentByMetrics returns the most recent rows per metric key, used by
// duplicate detection. A busy metric cannot crowd out another metric's
// latest readings because the limit applies per partition.
func (r *Repo) ListRecentByMetrics(ctx context.Context, userID uuid.UUID, metricKeys []string, perMetricLimit int) ([]Measurement, error) {
	if len(metricKeys) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY metric_key
				ORDER BY measured_at DESC, created_at DESC
			) AS rank
			FROM measurements
			WHERE user_id = $1 AND metric_key = ANY($2)
		) recent
		WHERE rank <= $3
		ORDER BY metric_key ASC, measured_at DESC`, measurementColumns)

	rows, err := r.pool.Query(ctx, query, userID, metricKeys, perMetricLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent by metrics: %w", err)
	}
	defer rows.Close()

	items := make([]Measurement, 0)
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		items = append(items, m)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate recent by metrics: %w", rows.Err())
	}
	return items, nil
}

// GetByID retrieves one of the user's measurements.
func (r *Repo) GetByID(ctx context.Context, userID, id uuid.UUID) (Measurement, error) {
	query := fmt.Sprintf(`SELECT %s FROM measurements WHERE id = $1 AND user_id = $2`, measurementColumns)

	m, err := scanMeasurement(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Measurement{}, apperr.NotFound(measurementNotFoundMessage)
		}
		return Measurement{}, fmt.Errorf("get measurement: %w", err)
	}
	return m, nil
}

// Update corrects a measurement's value, unit, or timestamp.
func (r *Repo) Update(ctx context.Context, params UpdateParams) (Measurement, error) {
	query := fmt.Sprintf(`
		UPDATE measurements
		SET value = COALESCE($3, value),
			unit = COALESCE($4, unit),
			measured_at = COALESCE($5, measured_at),
			notes = COALESCE($6, notes),
			updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING %s`, measurementColumns)

	m, err := scanMeasurement(r.pool.QueryRow(ctx, query,
		params.ID, params.UserID, params.Value, params.Unit, params.MeasuredAt, params.Notes,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Measurement{}, apperr.NotFound(measurementNotFoundMessage)
		}
		return Measurement{}, fmt.Errorf("update measurement: %w", err)
	}
	return m, nil
}

// Delete removes a measurement.
func (r *Repo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM measurements WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete measurement: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(measurementNotFoundMessage)
	}
	return nil
}
