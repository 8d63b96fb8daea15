package domain

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Normalizer resolves raw extracted names onto canonical catalog keys using,
// in order: exact key or display-name match, the alias table, and finally
// fuzzy matching against the whole catalog.
type Normalizer struct {
	aliases   AliasTable
	threshold float64
}

// NewNormalizer creates a normalizer. threshold is the minimum fuzzy
// similarity accepted as a match.
func NewNormalizer(aliases AliasTable, threshold float64) *Normalizer {
	return &Normalizer{aliases: aliases, threshold: threshold}
}

// Match is the outcome of resolving one raw name.
type Match struct {
	MetricKey string
	Kind      MatchKind
	Score     float64
}

// Resolve maps a raw name to a catalog metric key. Unmatched names carry no
// key and are later dropped by the orchestrator.
func (n *Normalizer) Resolve(rawName string, catalog Catalog) Match {
	normalized := NormalizeName(rawName)
	if normalized == "" {
		return Match{Kind: MatchUnmatched}
	}

	// Canonical key or display name, verbatim.
	for _, key := range catalog.Keys() {
		if normalized == keyAsWords(key) {
			return Match{MetricKey: key, Kind: MatchExact, Score: 1.0}
		}
		if m, ok := catalog.Get(key); ok && normalized == NormalizeName(m.DisplayName) {
			return Match{MetricKey: key, Kind: MatchExact, Score: 1.0}
		}
	}

	// Known alternative spellings. Alias hits are exact: the table is curated.
	if key, ok := n.aliases.Lookup(rawName); ok {
		if _, present := catalog.Get(key); present {
			return Match{MetricKey: key, Kind: MatchExact, Score: 1.0}
		}
	}

	// Edit-distance fallback for near spellings ("hart rate", "glucoze").
	bestKey, bestScore := "", 0.0
	for _, key := range catalog.Keys() {
		score := similarity(normalized, keyAsWords(key))
		if m, ok := catalog.Get(key); ok {
			if s := similarity(normalized, NormalizeName(m.DisplayName)); s > score {
				score = s
			}
		}
		if score > bestScore {
			bestKey, bestScore = key, score
		}
	}
	if bestScore >= n.threshold {
		return Match{MetricKey: bestKey, Kind: MatchFuzzy, Score: bestScore}
	}

	return Match{Kind: MatchUnmatched}
}

func keyAsWords(metricKey string) string {
	return NormalizeName(strings.ReplaceAll(metricKey, "_", " "))
}

// similarity converts edit distance into [0,1]; 1 means identical strings.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}
