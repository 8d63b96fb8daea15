package domain

import "testing"

type mapCatalog map[string]CatalogMetric

func (c mapCatalog) Get(key string) (CatalogMetric, bool) {
	m, ok := c[key]
	return m, ok
}

func (c mapCatalog) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

func testCatalog() mapCatalog {
	return mapCatalog{
		"weight":             {MetricKey: "weight", DisplayName: "Weight", Unit: "kg", MinValue: 20, MaxValue: 300},
		"heart_rate":         {MetricKey: "heart_rate", DisplayName: "Heart Rate", Unit: "bpm", MinValue: 20, MaxValue: 250},
		"glucose":            {MetricKey: "glucose", DisplayName: "Glucose", Unit: "mg/dL", MinValue: 20, MaxValue: 600},
		"visceral_fat_level": {MetricKey: "visceral_fat_level", DisplayName: "Visceral Fat Level", Unit: "level", MinValue: 1, MaxValue: 59},
	}
}

func testNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	aliases, err := LoadAliasTable("")
	if err != nil {
		t.Fatalf("LoadAliasTable() error = %v", err)
	}
	return NewNormalizer(aliases, 0.80)
}

func TestResolveExactKey(t *testing.T) {
	n := testNormalizer(t)

	m := n.Resolve("heart rate", testCatalog())
	if m.Kind != MatchExact {
		t.Fatalf("kind = %q, want exact", m.Kind)
	}
	if m.MetricKey != "heart_rate" {
		t.Fatalf("metric = %q, want heart_rate", m.MetricKey)
	}
	if m.Score != 1.0 {
		t.Fatalf("score = %v, want 1.0", m.Score)
	}
}

func TestResolveIsCaseAndWhitespaceInsensitive(t *testing.T) {
	n := testNormalizer(t)

	for _, name := range []string{"WEIGHT", "  Weight ", "weight"} {
		m := n.Resolve(name, testCatalog())
		if m.MetricKey != "weight" || m.Kind != MatchExact {
			t.Fatalf("Resolve(%q) = %+v, want exact weight", name, m)
		}
	}
}

func TestResolveThroughAliasTable(t *testing.T) {
	n := testNormalizer(t)

	tests := []struct {
		raw  string
		want string
	}{
		{"Waga", "weight"},
		{"Tłuszcz trzewny", "visceral_fat_level"},
		{"blood sugar", "glucose"},
		{"Pulse", "heart_rate"},
	}
	for _, tt := range tests {
		m := n.Resolve(tt.raw, testCatalog())
		if m.MetricKey != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.raw, m.MetricKey, tt.want)
		}
		if m.Kind != MatchExact {
			t.Errorf("Resolve(%q) kind = %q, want exact", tt.raw, m.Kind)
		}
	}
}

func TestResolveStripsPunctuation(t *testing.T) {
	n := testNormalizer(t)

	tests := []struct {
		raw  string
		want string
	}{
		{"Waga:", "weight"},
		{"weight.", "weight"},
		{"(Heart Rate)", "heart_rate"},
	}
	for _, tt := range tests {
		m := n.Resolve(tt.raw, testCatalog())
		if m.MetricKey != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.raw, m.MetricKey, tt.want)
		}
		if m.Kind != MatchExact {
			t.Errorf("Resolve(%q) kind = %q, want exact", tt.raw, m.Kind)
		}
	}
}

func TestResolveFuzzyNearSpelling(t *testing.T) {
	n := testNormalizer(t)

	m := n.Resolve("hart rate", testCatalog())
	if m.Kind != MatchFuzzy {
		t.Fatalf("kind = %q, want fuzzy", m.Kind)
	}
	if m.MetricKey != "heart_rate" {
		t.Fatalf("metric = %q, want heart_rate", m.MetricKey)
	}
	if m.Score < 0.80 || m.Score >= 1.0 {
		t.Fatalf("score = %v, want within [0.80, 1.0)", m.Score)
	}
}

func TestResolveUnmatched(t *testing.T) {
	n := testNormalizer(t)

	for _, name := range []string{"unknown_xyz", "shoe size", ""} {
		m := n.Resolve(name, testCatalog())
		if m.Kind != MatchUnmatched {
			t.Errorf("Resolve(%q) kind = %q, want unmatched", name, m.Kind)
		}
		if m.MetricKey != "" {
			t.Errorf("Resolve(%q) metric = %q, want empty", name, m.MetricKey)
		}
	}
}

func TestResolveAliasMissingFromCatalogFallsThrough(t *testing.T) {
	n := testNormalizer(t)
	// "kroki" aliases to steps, which this catalog does not carry.
	m := n.Resolve("kroki", testCatalog())
	if m.Kind != MatchUnmatched {
		t.Fatalf("kind = %q, want unmatched when aliased metric is absent", m.Kind)
	}
}
