package domain

import (
	"testing"
	"time"
)

func stored(id, metric string, value float64, unit string) Stored {
	return Stored{ID: id, MetricKey: metric, Value: value, Unit: unit, MeasuredAt: time.Now()}
}

func TestDetectDuplicateExactRepeatIsHigh(t *testing.T) {
	it := &Item{Raw: Extracted{Name: "weight", Value: 82.5, Unit: "kg"}, MetricKey: "weight"}
	DetectDuplicate(it, []Stored{stored("m1", "weight", 82.5, "kg")}, DefaultBands)

	if it.Duplicate != DupHigh {
		t.Fatalf("band = %q, want high", it.Duplicate)
	}
	if it.DuplicateOf != "m1" {
		t.Fatalf("duplicateOf = %q, want m1", it.DuplicateOf)
	}
	if it.DuplicateScore != 1.0 {
		t.Fatalf("score = %v, want 1.0 for an exact repeat", it.DuplicateScore)
	}
	if it.DuplicateValue != 82.5 {
		t.Fatalf("matched value = %v, want 82.5", it.DuplicateValue)
	}
	if !hasWarning(it, WarnPossibleDup) {
		t.Fatal("expected possible_duplicate warning")
	}
	if it.Dropped {
		t.Fatal("duplicate detection is advisory, item must not be dropped")
	}
}

func TestDetectDuplicateBands(t *testing.T) {
	tests := []struct {
		name     string
		existing float64
		incoming float64
		want     DuplicateBand
	}{
		{"within high band", 100, 97, DupHigh},
		{"within medium band", 100, 90, DupMedium},
		{"within low band", 100, 75, DupLow},
		{"below low band suppressed", 100, 50, DupNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := &Item{Raw: Extracted{Name: "glucose", Value: tt.incoming, Unit: "mg/dL"}, MetricKey: "glucose"}
			DetectDuplicate(it, []Stored{stored("m1", "glucose", tt.existing, "mg/dL")}, DefaultBands)
			if it.Duplicate != tt.want {
				t.Fatalf("band = %q, want %q", it.Duplicate, tt.want)
			}
			if tt.want == DupNone && hasWarning(it, WarnPossibleDup) {
				t.Fatal("suppressed match must not warn")
			}
		})
	}
}

func TestDetectDuplicateScoreIsRelativeCloseness(t *testing.T) {
	it := &Item{Raw: Extracted{Name: "glucose", Value: 90, Unit: "mg/dL"}, MetricKey: "glucose"}
	DetectDuplicate(it, []Stored{stored("m1", "glucose", 100, "mg/dL")}, DefaultBands)

	// 1 - |90-100|/100
	if got, want := it.DuplicateScore, 0.9; got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("score = %v, want %v", got, want)
	}
	if it.Duplicate != DupMedium {
		t.Fatalf("band = %q, want medium", it.Duplicate)
	}
}

func TestDetectDuplicateRequiresSameUnit(t *testing.T) {
	it := &Item{Raw: Extracted{Name: "weight", Value: 82.5, Unit: "kg"}, MetricKey: "weight"}
	DetectDuplicate(it, []Stored{stored("m1", "weight", 82.5, "lb")}, DefaultBands)

	if it.Duplicate != DupNone {
		t.Fatalf("band = %q, want none for differing units", it.Duplicate)
	}
}

func TestDetectDuplicateIgnoresOtherMetrics(t *testing.T) {
	it := &Item{Raw: Extracted{Name: "weight", Value: 82.5, Unit: "kg"}, MetricKey: "weight"}
	DetectDuplicate(it, []Stored{stored("m1", "muscle_mass", 82.5, "kg")}, DefaultBands)

	if it.Duplicate != DupNone {
		t.Fatalf("band = %q, want none across metrics", it.Duplicate)
	}
}

func TestDetectDuplicateNoExistingMeasurements(t *testing.T) {
	it := &Item{Raw: Extracted{Name: "weight", Value: 82.5, Unit: "kg"}, MetricKey: "weight"}
	DetectDuplicate(it, nil, DefaultBands)

	if it.Duplicate != DupNone || len(it.Warnings) != 0 {
		t.Fatalf("expected no findings, got band %q warnings %v", it.Duplicate, it.Warnings)
	}
}

func TestDetectDuplicatePicksClosestMatch(t *testing.T) {
	it := &Item{Raw: Extracted{Name: "weight", Value: 82.0, Unit: "kg"}, MetricKey: "weight"}
	DetectDuplicate(it, []Stored{
		stored("far", "weight", 70.0, "kg"),
		stored("near", "weight", 82.1, "kg"),
	}, DefaultBands)

	if it.DuplicateOf != "near" {
		t.Fatalf("duplicateOf = %q, want near", it.DuplicateOf)
	}
	if it.Duplicate != DupHigh {
		t.Fatalf("band = %q, want high", it.Duplicate)
	}
	if it.DuplicateValue != 82.1 {
		t.Fatalf("matched value = %v, want 82.1", it.DuplicateValue)
	}
}

func TestValueClosenessZeroDenominator(t *testing.T) {
	if got := valueCloseness(0, 0); got != 1.0 {
		t.Fatalf("valueCloseness(0,0) = %v, want 1.0", got)
	}
}
