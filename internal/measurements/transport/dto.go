package transport

import (
	"time"

	"github.com/google/uuid"

	"healthlens_backend/internal/measurements/domain"
)

// CandidateResponse is one pipeline item returned from extraction preview.
// Nothing is persisted until the user confirms.
type CandidateResponse struct {
	Name        string           `json:"name"`
	MetricKey   string           `json:"metricKey,omitempty"`
	Match       domain.MatchKind `json:"match"`
	MatchScore  float64          `json:"matchScore,omitempty"`
	Value       float64          `json:"value"`
	Unit        string           `json:"unit"`
	MeasuredAt  *time.Time       `json:"measuredAt,omitempty"`
	Warnings    []domain.Warning `json:"warnings,omitempty"`
	Duplicate   string           `json:"duplicate,omitempty"`
	DuplicateOf string           `json:"duplicateOf,omitempty"`
	// Closeness score plus the matched row's value and display name, set when
	// Duplicate is non-empty.
	DuplicateScore       float64  `json:"duplicateScore,omitempty"`
	DuplicateValue       *float64 `json:"duplicateValue,omitempty"`
	DuplicateDisplayName string   `json:"duplicateDisplayName,omitempty"`
	Dropped              bool     `json:"dropped"`
}

// ExtractResponse is the result of running extraction over uploaded photos.
type ExtractResponse struct {
	Candidates []CandidateResponse `json:"candidates"`
	Extracted  int                 `json:"extracted"`
	Eligible   int                 `json:"eligible"`
	Duplicates int                 `json:"duplicates"`
	Warnings   int                 `json:"warnings"`
	FileKeys   []string            `json:"fileKeys,omitempty"`
	// Message is set when extraction yielded nothing usable.
	Message string `json:"message,omitempty"`
}

// ConfirmItem is one row the user accepted for persistence.
type ConfirmItem struct {
	Name       string     `json:"name" validate:"required,min=1,max=200"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit" validate:"max=50"`
	MeasuredAt *time.Time `json:"measuredAt,omitempty"`
	FileKey    *string    `json:"fileKey,omitempty" validate:"omitempty,max=500"`
	Notes      *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ConfirmRequest persists a reviewed batch.
type ConfirmRequest struct {
	Items []ConfirmItem `json:"items" validate:"required,min=1,max=100,dive"`
}

// ConfirmResponse reports the persisted batch plus anything that fell out.
type ConfirmResponse struct {
	Saved      []MeasurementResponse `json:"saved"`
	Rejected   []CandidateResponse   `json:"rejected,omitempty"`
	Duplicates int                   `json:"duplicates"`
	Warnings   int                   `json:"warnings"`
}

// CreateMeasurementRequest adds one manual measurement.
type CreateMeasurementRequest struct {
	Name       string     `json:"name" validate:"required,min=1,max=200"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit" validate:"max=50"`
	MeasuredAt *time.Time `json:"measuredAt,omitempty"`
	Notes      *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// UpdateMeasurementRequest corrects a stored measurement.
type UpdateMeasurementRequest struct {
	Value      *float64   `json:"value,omitempty"`
	Unit       *string    `json:"unit,omitempty" validate:"omitempty,max=50"`
	MeasuredAt *time.Time `json:"measuredAt,omitempty"`
	Notes      *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ListMeasurementsRequest filters the caller's measurement history.
type ListMeasurementsRequest struct {
	Metric   string `form:"metric" validate:"omitempty,max=100"`
	From     string `form:"from" validate:"omitempty,max=50"`
	To       string `form:"to" validate:"omitempty,max=50"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

type MeasurementResponse struct {
	ID         uuid.UUID        `json:"id"`
	MetricKey  string           `json:"metricKey"`
	Value      float64          `json:"value"`
	Unit       string           `json:"unit"`
	MeasuredAt time.Time        `json:"measuredAt"`
	Source     string           `json:"source"`
	Confidence *float64         `json:"confidence,omitempty"`
	Notes      *string          `json:"notes,omitempty"`
	Warnings   []domain.Warning `json:"warnings,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

type MeasurementListResponse struct {
	Items      []MeasurementResponse `json:"items"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	TotalPages int                   `json:"totalPages"`
}

// ReportImageResponse is a presigned link to an original uploaded report.
type ReportImageResponse struct {
	FileKey   string    `json:"fileKey"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
