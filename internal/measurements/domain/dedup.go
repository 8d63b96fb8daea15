package domain

import (
	"fmt"
	"math"
)

// Bands holds the similarity thresholds that grade a duplicate candidate.
// Below Low a match is not reported at all.
type Bands struct {
	High   float64
	Medium float64
	Low    float64
}

// DefaultBands is the grading used unless configuration overrides it.
var DefaultBands = Bands{High: 0.95, Medium: 0.85, Low: 0.70}

// DetectDuplicate grades a candidate against the user's stored measurements
// for the same metric. The result is advisory: it attaches a warning, the
// band, and the closeness score, but never drops the item.
func DetectDuplicate(it *Item, existing []Stored, bands Bands) {
	if it.Dropped || it.MetricKey == "" {
		return
	}

	bestBand := DupNone
	bestScore := 0.0
	var best Stored
	for _, s := range existing {
		if s.MetricKey != it.MetricKey {
			continue
		}
		// Different units never count as duplicates.
		if !unitsEqual(s.Unit, it.Raw.Unit) {
			continue
		}
		score := valueCloseness(it.Raw.Value, s.Value)
		if band := bands.grade(score); band != DupNone && score > bestScore {
			bestBand, bestScore, best = band, score, s
		}
	}

	if bestBand == DupNone {
		return
	}

	it.Duplicate = bestBand
	it.DuplicateOf = best.ID
	it.DuplicateScore = bestScore
	it.DuplicateValue = best.Value
	it.Warn(WarnPossibleDup, fmt.Sprintf(
		"%s value %g closely matches an existing measurement (%s confidence)",
		it.MetricKey, it.Raw.Value, bestBand))
}

// valueCloseness is the relative closeness of two values in [0,1]; identical
// values score 1.
func valueCloseness(a, b float64) float64 {
	if a == b {
		return 1.0
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return 1.0
	}
	score := 1.0 - math.Abs(a-b)/denom
	if score < 0 {
		return 0
	}
	return score
}

func (b Bands) grade(score float64) DuplicateBand {
	switch {
	case score >= b.High:
		return DupHigh
	case score >= b.Medium:
		return DupMedium
	case score >= b.Low:
		return DupLow
	default:
		return DupNone
	}
}
