package domain

import (
	"math"
	"sort"
	"testing"
)

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	return NewPipeline(testNormalizer(t), DefaultBands)
}

func fixedHistory(existing []Stored) HistoryFunc {
	return func(metricKeys []string) ([]Stored, error) {
		return existing, nil
	}
}

func TestProcessMixedBatch(t *testing.T) {
	p := testPipeline(t)

	batch := []Extracted{
		{Name: "Waga", Value: 82.5, Unit: "kg"},
		{Name: "unknown_xyz", Value: 1, Unit: "u"},
		{Name: "glucose", Value: math.NaN(), Unit: "mg/dL"},
		{Name: "heart rate", Value: 400, Unit: "bpm"},
	}
	items, err := p.Process(batch, testCatalog(), nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(items) != 4 {
		t.Fatalf("got %d items, want one per input", len(items))
	}

	if items[0].Dropped || items[0].MetricKey != "weight" {
		t.Fatalf("aliased item = %+v, want kept weight", items[0])
	}

	if !items[1].Dropped || items[1].DropReason != WarnUnmatchedMetric {
		t.Fatalf("unmatched item = %+v, want dropped unmatched_metric", items[1])
	}

	if !items[2].Dropped || items[2].DropReason != WarnNotFinite {
		t.Fatalf("non-finite item = %+v, want dropped not_finite", items[2])
	}

	if items[3].Dropped {
		t.Fatal("out-of-range item must be kept")
	}
	if !hasWarning(&items[3], WarnOutOfRange) {
		t.Fatal("expected out_of_range warning on heart rate 400")
	}
}

func TestProcessFlagsDuplicatesAgainstExisting(t *testing.T) {
	p := testPipeline(t)

	items, err := p.Process(
		[]Extracted{{Name: "weight", Value: 82.5, Unit: "kg"}},
		testCatalog(),
		fixedHistory([]Stored{stored("m1", "weight", 82.5, "kg")}),
	)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if items[0].Duplicate != DupHigh {
		t.Fatalf("band = %q, want high", items[0].Duplicate)
	}
	if items[0].DuplicateScore != 1.0 {
		t.Fatalf("score = %v, want 1.0", items[0].DuplicateScore)
	}
	if items[0].DuplicateValue != 82.5 {
		t.Fatalf("matched value = %v, want 82.5", items[0].DuplicateValue)
	}
	if items[0].DuplicateDisplayName != "Weight" {
		t.Fatalf("display name = %q, want Weight", items[0].DuplicateDisplayName)
	}
	if items[0].Dropped {
		t.Fatal("duplicates are advisory and must be kept")
	}
}

func TestProcessRequestsHistoryForResolvedMetricsOnly(t *testing.T) {
	p := testPipeline(t)

	var requested []string
	_, err := p.Process(
		[]Extracted{
			{Name: "weight", Value: 82.5, Unit: "kg"},
			{Name: "weight", Value: 83.0, Unit: "kg"},
			{Name: "unknown_xyz", Value: 1, Unit: "u"},
		},
		testCatalog(),
		func(metricKeys []string) ([]Stored, error) {
			requested = metricKeys
			return nil, nil
		},
	)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	sort.Strings(requested)
	if len(requested) != 1 || requested[0] != "weight" {
		t.Fatalf("history requested for %v, want only [weight]", requested)
	}
}

func TestProcessSkipsHistoryWhenNothingResolved(t *testing.T) {
	p := testPipeline(t)

	called := false
	items, err := p.Process(
		[]Extracted{{Name: "unknown_xyz", Value: 1, Unit: "u"}},
		testCatalog(),
		func(metricKeys []string) ([]Stored, error) {
			called = true
			return nil, nil
		},
	)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if called {
		t.Fatal("history must not be fetched when no item resolved")
	}
	if !items[0].Dropped {
		t.Fatal("unmatched item should be dropped")
	}
}

func TestProcessEmptyBatch(t *testing.T) {
	p := testPipeline(t)
	items, err := p.Process(nil, testCatalog(), nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("got %d items for empty batch", len(items))
	}
}
