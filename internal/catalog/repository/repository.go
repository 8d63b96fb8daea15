package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"healthlens_backend/platform/apperr"
)

const metricNotFoundMessage = "catalog metric not found"

const metricColumns = `id, metric_key, display_name, unit, min_value, max_value,
	healthy_min_male, healthy_max_male, healthy_min_female, healthy_max_female,
	category, description, sort_order, created_at, updated_at`

// Repo implements the catalog repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new catalog repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

func scanMetric(row pgx.Row) (Metric, error) {
	var m Metric
	var createdAt, updatedAt time.Time
	if err := row.Scan(
		&m.ID, &m.MetricKey, &m.DisplayName, &m.Unit, &m.MinValue, &m.MaxValue,
		&m.HealthyMinMale, &m.HealthyMaxMale, &m.HealthyMinFemale, &m.HealthyMaxFemale,
		&m.Category, &m.Description, &m.SortOrder, &createdAt, &updatedAt,
	); err != nil {
		return Metric{}, err
	}
	m.CreatedAt = createdAt.Format(time.RFC3339)
	m.UpdatedAt = updatedAt.Format(time.RFC3339)
	return m, nil
}

// ListAll returns the entire catalog, used to build the in-cache snapshot.
func (r *Repo) ListAll(ctx context.Context) ([]Metric, error) {
	query := fmt.Sprintf(`SELECT %s FROM metric_catalog ORDER BY sort_order ASC, metric_key ASC`, metricColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all metrics: %w", err)
	}
	defer rows.Close()

	items := make([]Metric, 0)
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		items = append(items, m)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate metrics: %w", rows.Err())
	}
	return items, nil
}

// ListMetrics lists catalog metrics with filters and pagination.
func (r *Repo) ListMetrics(ctx context.Context, params ListMetricsParams) ([]Metric, int, error) {
	whereClauses := []string{"TRUE"}
	args := []interface{}{}
	argIdx := 1

	if params.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("(metric_key ILIKE $%d OR display_name ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+params.Search+"%")
		argIdx++
	}
	if params.Category != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, params.Category)
		argIdx++
	}

	whereClause := strings.Join(whereClauses, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM metric_catalog WHERE %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count metrics: %w", err)
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM metric_catalog
		WHERE %s
		ORDER BY sort_order ASC, metric_key ASC
		LIMIT $%d OFFSET $%d
	`, metricColumns, whereClause, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list metrics: %w", err)
	}
	defer rows.Close()

	items := make([]Metric, 0)
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan metric: %w", err)
		}
		items = append(items, m)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate metrics: %w", rows.Err())
	}
	return items, total, nil
}

// GetByKey retrieves a catalog metric by its canonical key.
func (r *Repo) GetByKey(ctx context.Context, metricKey string) (Metric, error) {
	query := fmt.Sprintf(`SELECT %s FROM metric_catalog WHERE metric_key = $1`, metricColumns)

	m, err := scanMetric(r.pool.QueryRow(ctx, query, metricKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Metric{}, apperr.NotFound(metricNotFoundMessage)
		}
		return Metric{}, fmt.Errorf("get metric by key: %w", err)
	}
	return m, nil
}

// GetByID retrieves a catalog metric by ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Metric, error) {
	query := fmt.Sprintf(`SELECT %s FROM metric_catalog WHERE id = $1`, metricColumns)

	m, err := scanMetric(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Metric{}, apperr.NotFound(metricNotFoundMessage)
		}
		return Metric{}, fmt.Errorf("get metric by id: %w", err)
	}
	return m, nil
}

// CreateMetric creates a catalog metric.
func (r *Repo) CreateMetric(ctx context.Context, params CreateMetricParams) (Metric, error) {
	query := fmt.Sprintf(`
		INSERT INTO metric_catalog (
			metric_key, display_name, unit, min_value, max_value,
			healthy_min_male, healthy_max_male, healthy_min_female, healthy_max_female,
			category, description, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING %s`, metricColumns)

	m, err := scanMetric(r.pool.QueryRow(ctx, query,
		params.MetricKey, params.DisplayName, params.Unit,
		params.MinValue, params.MaxValue,
		params.HealthyMinMale, params.HealthyMaxMale, params.HealthyMinFemale, params.HealthyMaxFemale,
		params.Category, params.Description, params.SortOrder,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return Metric{}, apperr.Conflict("metric key already exists")
		}
		return Metric{}, fmt.Errorf("create metric: %w", err)
	}
	return m, nil
}

// UpdateMetric updates a catalog metric.
func (r *Repo) UpdateMetric(ctx context.Context, params UpdateMetricParams) (Metric, error) {
	query := fmt.Sprintf(`
		UPDATE metric_catalog
		SET display_name = COALESCE($2, display_name),
			unit = COALESCE($3, unit),
			min_value = COALESCE($4, min_value),
			max_value = COALESCE($5, max_value),
			healthy_min_male = COALESCE($6, healthy_min_male),
			healthy_max_male = COALESCE($7, healthy_max_male),
			healthy_min_female = COALESCE($8, healthy_min_female),
			healthy_max_female = COALESCE($9, healthy_max_female),
			category = COALESCE($10, category),
			description = COALESCE($11, description),
			sort_order = COALESCE($12, sort_order),
			updated_at = now()
		WHERE id = $1
		RETURNING %s`, metricColumns)

	m, err := scanMetric(r.pool.QueryRow(ctx, query,
		params.ID, params.DisplayName, params.Unit,
		params.MinValue, params.MaxValue,
		params.HealthyMinMale, params.HealthyMaxMale, params.HealthyMinFemale, params.HealthyMaxFemale,
		params.Category, params.Description, params.SortOrder,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Metric{}, apperr.NotFound(metricNotFoundMessage)
		}
		return Metric{}, fmt.Errorf("update metric: %w", err)
	}
	return m, nil
}

// DeleteMetric deletes a catalog metric and returns its key for event publishing.
func (r *Repo) DeleteMetric(ctx context.Context, id uuid.UUID) (string, error) {
	query := `DELETE FROM metric_catalog WHERE id = $1 RETURNING metric_key`

	var metricKey string
	if err := r.pool.QueryRow(ctx, query, id).Scan(&metricKey); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound(metricNotFoundMessage)
		}
		return "", fmt.Errorf("delete metric: %w", err)
	}
	return metricKey, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "23505")
}
