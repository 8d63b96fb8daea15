package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Subject is the demographic preamble rendered ahead of the measurement table.
// Nil fields render as "not provided".
type Subject struct {
	Age         *int
	Sex         *string
	HeightCm    *float64
	Conditions  *string
	Medications *string
	Goals       *string
}

// Row is one stored measurement projected into the CSV.
type Row struct {
	Metric     string
	Value      float64
	Unit       string
	MeasuredAt time.Time
}

const notProvided = "not provided"

// ProjectCSV renders the subject and measurement history as a compact table
// for the generator. Each metric keeps at most perMetricCap most recent rows,
// values are fixed to one decimal place, and the output size stays bounded
// regardless of history length.
func ProjectCSV(subject Subject, rows []Row, perMetricCap int) string {
	var b strings.Builder

	b.WriteString("Patient profile:\n")
	fmt.Fprintf(&b, "age: %s\n", orNotProvided(intString(subject.Age)))
	fmt.Fprintf(&b, "sex: %s\n", orNotProvidedPtr(subject.Sex))
	fmt.Fprintf(&b, "height_cm: %s\n", orNotProvided(floatString(subject.HeightCm)))
	fmt.Fprintf(&b, "conditions: %s\n", orNotProvidedPtr(subject.Conditions))
	fmt.Fprintf(&b, "medications: %s\n", orNotProvidedPtr(subject.Medications))
	fmt.Fprintf(&b, "goals: %s\n", orNotProvidedPtr(subject.Goals))

	b.WriteString("\nMeasurements:\n")
	b.WriteString("metric,value,unit,date\n")

	for _, row := range capPerMetric(rows, perMetricCap) {
		fmt.Fprintf(&b, "%s,%.1f,%s,%s\n",
			row.Metric, row.Value, row.Unit, row.MeasuredAt.Format("2006-01-02"))
	}

	return b.String()
}

// capPerMetric keeps at most limit most recent rows per metric, ordered by
// metric name and then most recent first, so output is deterministic for a
// given history snapshot.
func capPerMetric(rows []Row, limit int) []Row {
	byMetric := make(map[string][]Row)
	for _, r := range rows {
		byMetric[r.Metric] = append(byMetric[r.Metric], r)
	}

	metrics := make([]string, 0, len(byMetric))
	for m := range byMetric {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	out := make([]Row, 0, len(rows))
	for _, m := range metrics {
		group := byMetric[m]
		sort.Slice(group, func(i, j int) bool {
			return group[i].MeasuredAt.After(group[j].MeasuredAt)
		})
		if limit > 0 && len(group) > limit {
			group = group[:limit]
		}
		out = append(out, group...)
	}
	return out
}

// DateRange returns the earliest and latest measurement times in rows.
// Both returns are nil for an empty history.
func DateRange(rows []Row) (start, end *time.Time) {
	for _, r := range rows {
		t := r.MeasuredAt
		if start == nil || t.Before(*start) {
			s := t
			start = &s
		}
		if end == nil || t.After(*end) {
			e := t
			end = &e
		}
	}
	return start, end
}

// MetricsCount returns the number of distinct metrics in rows.
func MetricsCount(rows []Row) int {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.Metric] = struct{}{}
	}
	return len(seen)
}

func orNotProvided(s string) string {
	if s == "" {
		return notProvided
	}
	return s
}

func orNotProvidedPtr(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return notProvided
	}
	return *s
}

func intString(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func floatString(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.0f", *v)
}
