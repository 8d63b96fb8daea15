package repository

import (
	"context"

	"github.com/google/uuid"
)

// Metric is one entry of the measurement catalog. MetricKey is the canonical
// identifier extracted values are normalized onto.
type Metric struct {
	ID          uuid.UUID `db:"id"`
	MetricKey   string    `db:"metric_key"`
	DisplayName string    `db:"display_name"`
	Unit        string    `db:"unit"`
	MinValue    float64   `db:"min_value"`
	MaxValue    float64   `db:"max_value"`
	// Healthy reference ranges are advisory display context, split by sex
	// because reference intervals differ. Nil means no published range.
	HealthyMinMale   *float64 `db:"healthy_min_male"`
	HealthyMaxMale   *float64 `db:"healthy_max_male"`
	HealthyMinFemale *float64 `db:"healthy_min_female"`
	HealthyMaxFemale *float64 `db:"healthy_max_female"`
	Category         string   `db:"category"`
	Description      *string  `db:"description"`
	SortOrder        int      `db:"sort_order"`
	CreatedAt        string   `db:"created_at"`
	UpdatedAt        string   `db:"updated_at"`
}

// CreateMetricParams contains data for creating a catalog metric.
type CreateMetricParams struct {
	MetricKey        string
	DisplayName      string
	Unit             string
	MinValue         float64
	MaxValue         float64
	HealthyMinMale   *float64
	HealthyMaxMale   *float64
	HealthyMinFemale *float64
	HealthyMaxFemale *float64
	Category         string
	Description      *string
	SortOrder        int
}

// UpdateMetricParams contains data for updating a catalog metric.
// Nil fields are left unchanged.
type UpdateMetricParams struct {
	ID               uuid.UUID
	DisplayName      *string
	Unit             *string
	MinValue         *float64
	MaxValue         *float64
	HealthyMinMale   *float64
	HealthyMaxMale   *float64
	HealthyMinFemale *float64
	HealthyMaxFemale *float64
	Category         *string
	Description      *string
	SortOrder        *int
}

// ListMetricsParams defines filters for listing catalog metrics.
type ListMetricsParams struct {
	Search   string
	Category string
	Offset   int
	Limit    int
}

// Repository defines catalog storage operations.
type Repository interface {
	ListAll(ctx context.Context) ([]Metric, error)
	ListMetrics(ctx context.Context, params ListMetricsParams) ([]Metric, int, error)
	GetByKey(ctx context.Context, metricKey string) (Metric, error)
	GetByID(ctx context.Context, id uuid.UUID) (Metric, error)
	CreateMetric(ctx context.Context, params CreateMetricParams) (Metric, error)
	UpdateMetric(ctx context.Context, params UpdateMetricParams) (Metric, error)
	DeleteMetric(ctx context.Context, id uuid.UUID) (string, error)
}
