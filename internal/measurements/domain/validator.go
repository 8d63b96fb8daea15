package domain

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks a normalized item against its catalog entry. Non-finite
// values drop the item; range and unit problems only attach warnings so the
// user can still confirm the row. Values are reported as-is, never clamped.
func Validate(it *Item, metric CatalogMetric) {
	if math.IsNaN(it.Raw.Value) || math.IsInf(it.Raw.Value, 0) {
		it.Drop(WarnNotFinite, fmt.Sprintf("%q has a non-numeric value", it.Raw.Name))
		return
	}

	if !unitsEqual(it.Raw.Unit, metric.Unit) {
		it.Warn(WarnUnitMismatch, fmt.Sprintf(
			"unit %q does not match expected %q for %s", it.Raw.Unit, metric.Unit, metric.MetricKey))
	}

	// Boundaries are inclusive: a value exactly at the limit is valid.
	if it.Raw.Value < metric.MinValue || it.Raw.Value > metric.MaxValue {
		it.Warn(WarnOutOfRange, fmt.Sprintf(
			"%s value %g is outside the plausible range [%g, %g]",
			metric.MetricKey, it.Raw.Value, metric.MinValue, metric.MaxValue))
	}
}

func unitsEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
