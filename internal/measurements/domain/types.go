// Package domain contains the measurement ingestion pipeline: name
// normalization, range validation, and duplicate detection. The pipeline is
// pure; persistence and transport live in the surrounding layers.
package domain

import (
	"time"
)

// CatalogMetric is the slice of a catalog entry the pipeline needs.
type CatalogMetric struct {
	MetricKey   string
	DisplayName string
	Unit        string
	MinValue    float64
	MaxValue    float64
}

// Catalog is a point-in-time lookup of canonical metrics, typically backed by
// the catalog module's snapshot cache.
type Catalog interface {
	Get(metricKey string) (CatalogMetric, bool)
	Keys() []string
}

// Extracted is one raw measurement as produced by the extraction model or a
// manual entry, before normalization.
type Extracted struct {
	Name       string
	Value      float64
	Unit       string
	MeasuredAt *time.Time
}

// MatchKind describes how a raw name was resolved onto a catalog key.
type MatchKind string

const (
	MatchExact     MatchKind = "exact"
	MatchFuzzy     MatchKind = "fuzzy"
	MatchUnmatched MatchKind = "unmatched"
)

// WarningCode identifies a non-fatal pipeline finding attached to an item.
type WarningCode string

const (
	WarnUnmatchedMetric WarningCode = "unmatched_metric"
	WarnNotFinite       WarningCode = "not_finite"
	WarnOutOfRange      WarningCode = "out_of_range"
	WarnUnitMismatch    WarningCode = "unit_mismatch"
	WarnPossibleDup     WarningCode = "possible_duplicate"
)

// Warning is attached to a pipeline item; it never aborts the batch.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// DuplicateBand grades how closely a candidate matches an existing stored
// measurement. Matches below the low band are not reported at all.
type DuplicateBand string

const (
	DupNone   DuplicateBand = ""
	DupLow    DuplicateBand = "low"
	DupMedium DuplicateBand = "medium"
	DupHigh   DuplicateBand = "high"
)

// Item is one measurement flowing through the pipeline with everything the
// stages attached to it.
type Item struct {
	// Raw extraction input.
	Raw Extracted

	// Normalization result. MetricKey is empty when Match is MatchUnmatched.
	MetricKey string
	Match     MatchKind
	// Similarity of the fuzzy match that produced MetricKey, 1.0 for exact.
	MatchScore float64

	// Validation and duplicate findings.
	Warnings  []Warning
	Duplicate DuplicateBand
	// DuplicateOf is the stored measurement the candidate resembles, with its
	// closeness score, value, and catalog display name for the review UI.
	DuplicateOf          string
	DuplicateScore       float64
	DuplicateValue       float64
	DuplicateDisplayName string

	// Dropped items are reported back to the caller but never persisted.
	Dropped    bool
	DropReason WarningCode
}

// Warn appends a warning to the item.
func (it *Item) Warn(code WarningCode, message string) {
	it.Warnings = append(it.Warnings, Warning{Code: code, Message: message})
}

// Drop marks the item as excluded from persistence.
func (it *Item) Drop(reason WarningCode, message string) {
	it.Dropped = true
	it.DropReason = reason
	it.Warn(reason, message)
}

// Stored is an existing persisted measurement, as seen by the duplicate
// detector.
type Stored struct {
	ID         string
	MetricKey  string
	Value      float64
	Unit       string
	MeasuredAt time.Time
}
