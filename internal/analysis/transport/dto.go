// Package transport defines the analysis HTTP request and response shapes.
package transport

import (
	"time"

	"github.com/google/uuid"

	"healthlens_backend/internal/analysis/domain"
	"healthlens_backend/internal/analysis/repository"
)

// Analysis statuses as surfaced to clients. "cached" marks a document served
// from a fresh prior run rather than a new generation.
const (
	StatusCached    = "cached"
	StatusCompleted = "completed"
)

// AnalysisResponse is one analysis document with its run metadata.
type AnalysisResponse struct {
	ID               uuid.UUID       `json:"id"`
	Status           string          `json:"status"`
	Document         domain.Document `json:"document"`
	MetricsCount     int             `json:"metricsCount"`
	DateRangeStart   *time.Time      `json:"dateRangeStart,omitempty"`
	DateRangeEnd     *time.Time      `json:"dateRangeEnd,omitempty"`
	ModelVersion     string          `json:"modelVersion"`
	PromptTokens     int             `json:"promptTokens"`
	CompletionTokens int             `json:"completionTokens"`
	TotalCostUSD     float64         `json:"totalCostUsd"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// AnalysisSummary is one row in the analysis history listing.
type AnalysisSummary struct {
	ID           uuid.UUID  `json:"id"`
	Status       string     `json:"status"`
	ErrorCode    *string    `json:"errorCode,omitempty"`
	MetricsCount int        `json:"metricsCount"`
	ModelVersion string     `json:"modelVersion"`
	TotalCostUSD float64    `json:"totalCostUsd"`
	CreatedAt    time.Time  `json:"createdAt"`
	DateRangeEnd *time.Time `json:"dateRangeEnd,omitempty"`
}

// ListAnalysesRequest carries pagination for the history listing.
type ListAnalysesRequest struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// AnalysisListResponse is a paginated history listing.
type AnalysisListResponse struct {
	Analyses []AnalysisSummary `json:"analyses"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// ToSummary maps a stored record to its listing row.
func ToSummary(rec repository.Record) AnalysisSummary {
	return AnalysisSummary{
		ID:           rec.ID,
		Status:       rec.Status,
		ErrorCode:    rec.ErrorCode,
		MetricsCount: rec.MetricsCount,
		ModelVersion: rec.ModelVersion,
		TotalCostUSD: rec.TotalCostUSD,
		CreatedAt:    rec.CreatedAt,
		DateRangeEnd: rec.DateRangeEnd,
	}
}
