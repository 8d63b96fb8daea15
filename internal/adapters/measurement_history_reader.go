package adapters

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	andomain "healthlens_backend/internal/analysis/domain"
	ansvc "healthlens_backend/internal/analysis/service"
	mrepo "healthlens_backend/internal/measurements/repository"
)

// MeasurementHistoryReader adapts the measurements repository for the
// analysis projection, satisfying service.MeasurementSource.
type MeasurementHistoryReader struct {
	repo  mrepo.Repository
	limit int
}

// NewMeasurementHistoryReader creates a new measurement history adapter.
// limit bounds how much raw history is fetched before the per-metric cap is
// applied by the projector.
func NewMeasurementHistoryReader(repo mrepo.Repository, limit int) *MeasurementHistoryReader {
	return &MeasurementHistoryReader{repo: repo, limit: limit}
}

// Rows returns the user's recent measurements as projection rows.
func (a *MeasurementHistoryReader) Rows(ctx context.Context, userID uuid.UUID) ([]andomain.Row, error) {
	measurements, err := a.repo.ListRecent(ctx, userID, a.limit)
	if err != nil {
		return nil, fmt.Errorf("measurement history adapter: list recent: %w", err)
	}

	rows := make([]andomain.Row, 0, len(measurements))
	for _, m := range measurements {
		rows = append(rows, andomain.Row{
			Metric:     m.MetricKey,
			Value:      m.Value,
			Unit:       m.Unit,
			MeasuredAt: m.MeasuredAt,
		})
	}
	return rows, nil
}

// Compile-time check that MeasurementHistoryReader implements service.MeasurementSource.
var _ ansvc.MeasurementSource = (*MeasurementHistoryReader)(nil)
