package domain

import "fmt"

// HistoryFunc returns the user's recent stored measurements for the given
// metric keys. Duplicate grading compares only against these.
type HistoryFunc func(metricKeys []string) ([]Stored, error)

// Pipeline runs extracted measurements through normalization, validation, and
// duplicate detection. Every input produces exactly one output Item; problems
// surface as warnings or drops, never as errors.
type Pipeline struct {
	normalizer *Normalizer
	bands      Bands
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(normalizer *Normalizer, bands Bands) *Pipeline {
	return &Pipeline{normalizer: normalizer, bands: bands}
}

// Process runs the full pipeline over a batch. History is requested once,
// only for the metric keys the batch actually resolved onto.
func (p *Pipeline) Process(batch []Extracted, catalog Catalog, history HistoryFunc) ([]Item, error) {
	items := make([]Item, len(batch))
	keys := make([]string, 0, len(batch))
	seen := make(map[string]bool, len(batch))
	for i, raw := range batch {
		it := &items[i]
		it.Raw = raw

		match := p.normalizer.Resolve(raw.Name, catalog)
		it.Match = match.Kind
		it.MetricKey = match.MetricKey
		it.MatchScore = match.Score

		if match.Kind == MatchUnmatched {
			it.Drop(WarnUnmatchedMetric, fmt.Sprintf("%q does not match any known metric", raw.Name))
			continue
		}

		metric, ok := catalog.Get(match.MetricKey)
		if !ok {
			it.Drop(WarnUnmatchedMetric, fmt.Sprintf("%q resolved to a metric no longer in the catalog", raw.Name))
			continue
		}

		Validate(it, metric)
		if !it.Dropped && !seen[it.MetricKey] {
			seen[it.MetricKey] = true
			keys = append(keys, it.MetricKey)
		}
	}

	if len(keys) == 0 || history == nil {
		return items, nil
	}
	existing, err := history(keys)
	if err != nil {
		return nil, fmt.Errorf("load measurement history: %w", err)
	}

	for i := range items {
		it := &items[i]
		DetectDuplicate(it, existing, p.bands)
		if it.Duplicate == DupNone {
			continue
		}
		if metric, ok := catalog.Get(it.MetricKey); ok {
			it.DuplicateDisplayName = metric.DisplayName
		}
	}
	return items, nil
}
