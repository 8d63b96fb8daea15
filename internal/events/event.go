// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"healthlens_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Catalog Domain Events
// =============================================================================

// CatalogChanged is published when an admin creates, updates, or deletes a
// catalog metric. Subscribers drop cached catalog snapshots.
type CatalogChanged struct {
	BaseEvent
	MetricKey string    `json:"metricKey"`
	ChangedBy uuid.UUID `json:"changedBy"`
	Action    string    `json:"action"` // "created", "updated", "deleted"
}

func (e CatalogChanged) EventName() string { return "catalog.metric.changed" }

// =============================================================================
// Measurements Domain Events
// =============================================================================

// MeasurementsIngested is published after a batch of extracted measurements
// has been normalized, validated, and persisted for a user.
type MeasurementsIngested struct {
	BaseEvent
	UserID         uuid.UUID `json:"userId"`
	ExtractedCount int       `json:"extractedCount"`
	ProcessedCount int       `json:"processedCount"`
	DuplicateCount int       `json:"duplicateCount"`
	WarningCount   int       `json:"warningCount"`
	Source         string    `json:"source"` // "ocr", "manual"
}

func (e MeasurementsIngested) EventName() string { return "measurements.batch.ingested" }

// ReportImageUploaded is published when a health report image is stored
// and queued for extraction.
type ReportImageUploaded struct {
	BaseEvent
	UserID      uuid.UUID `json:"userId"`
	FileKey     string    `json:"fileKey"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
}

func (e ReportImageUploaded) EventName() string { return "measurements.report_image.uploaded" }

// =============================================================================
// Analysis Domain Events
// =============================================================================

// AnalysisCompleted is published when a health analysis document is generated
// and persisted.
type AnalysisCompleted struct {
	BaseEvent
	AnalysisID       uuid.UUID `json:"analysisId"`
	UserID           uuid.UUID `json:"userId"`
	ModelID          string    `json:"modelId"`
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	CostUSD          float64   `json:"costUsd"`
	FromCache        bool      `json:"fromCache"`
}

func (e AnalysisCompleted) EventName() string { return "analysis.completed" }

// AnalysisFailed is published when generation exhausts its attempts or the
// upstream provider rejects the request.
type AnalysisFailed struct {
	BaseEvent
	AnalysisID   uuid.UUID `json:"analysisId"`
	UserID       uuid.UUID `json:"userId"`
	ErrorCode    string    `json:"errorCode"`
	ErrorMessage string    `json:"errorMessage"`
}

func (e AnalysisFailed) EventName() string { return "analysis.failed" }
