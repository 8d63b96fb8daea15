package domain

import "testing"

const validWireDoc = `{
	"s": "Overall healthy picture with one flag.",
	"os": "fair",
	"kf": [{"m": "glucose", "f": "fasting glucose trending high", "sev": "moderate"}],
	"tr": [{"m": "weight", "dir": "down", "n": "steady loss over 6 weeks"}],
	"rec": [{"a": "diet", "t": "reduce refined sugar intake", "p": "high"}],
	"rf": ["family history of diabetes"],
	"sm": ["hba1c"],
	"d": "Not medical advice."
}`

func TestParseAbbreviatedValid(t *testing.T) {
	doc, err := ParseAbbreviated([]byte(validWireDoc))
	if err != nil {
		t.Fatalf("ParseAbbreviated: %v", err)
	}
	if doc.Summary == "" || len(doc.KeyFindings) != 1 || len(doc.Recommendations) != 1 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.KeyFindings[0].Metric != "glucose" {
		t.Errorf("key finding metric = %q, want glucose", doc.KeyFindings[0].Metric)
	}
}

func TestParseAbbreviatedRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `the patient is fine`},
		{"missing summary", `{"kf": [], "rec": []}`},
		{"missing key findings", `{"s": "ok", "rec": []}`},
		{"missing recommendations", `{"s": "ok", "kf": []}`},
		{"finding without metric", `{"s": "ok", "kf": [{"f": "high"}], "rec": []}`},
		{"finding without text", `{"s": "ok", "kf": [{"m": "glucose"}], "rec": []}`},
		{"recommendation without action", `{"s": "ok", "kf": [], "rec": [{"a": "diet"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseAbbreviated([]byte(tc.raw)); err == nil {
				t.Fatalf("ParseAbbreviated accepted %s", tc.raw)
			}
		})
	}
}

func TestParseAbbreviatedAllowsEmptyRequiredLists(t *testing.T) {
	doc, err := ParseAbbreviated([]byte(`{"s": "no data to analyze", "kf": [], "rec": []}`))
	if err != nil {
		t.Fatalf("ParseAbbreviated: %v", err)
	}
	if len(doc.KeyFindings) != 0 || len(doc.Recommendations) != 0 {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestExpandDocument(t *testing.T) {
	ab, err := ParseAbbreviated([]byte(validWireDoc))
	if err != nil {
		t.Fatalf("ParseAbbreviated: %v", err)
	}

	doc := ExpandDocument(ab)
	if doc.Summary != ab.Summary || doc.OverallStatus != "fair" {
		t.Errorf("scalar expansion: %+v", doc)
	}
	if doc.KeyFindings[0].Severity != "moderate" {
		t.Errorf("key finding severity = %q", doc.KeyFindings[0].Severity)
	}
	if doc.Trends[0].Direction != "down" {
		t.Errorf("trend direction = %q", doc.Trends[0].Direction)
	}
	if doc.Recommendations[0].Priority != "high" {
		t.Errorf("recommendation priority = %q", doc.Recommendations[0].Priority)
	}
	if doc.Disclaimer != "Not medical advice." {
		t.Errorf("disclaimer = %q", doc.Disclaimer)
	}
}

func TestExpandDocumentDefaultsMissingFields(t *testing.T) {
	ab, err := ParseAbbreviated([]byte(`{"s": "short", "kf": [], "rec": []}`))
	if err != nil {
		t.Fatalf("ParseAbbreviated: %v", err)
	}

	doc := ExpandDocument(ab)
	if doc.OverallStatus != "" || doc.Disclaimer != "" {
		t.Errorf("missing scalars should default to empty strings: %+v", doc)
	}
	for name, list := range map[string]int{
		"keyFindings":      len(doc.KeyFindings),
		"trends":           len(doc.Trends),
		"recommendations":  len(doc.Recommendations),
		"riskFactors":      len(doc.RiskFactors),
		"suggestedMetrics": len(doc.SuggestedMetrics),
	} {
		if list != 0 {
			t.Errorf("%s should be empty, got %d", name, list)
		}
	}
	if doc.RiskFactors == nil || doc.SuggestedMetrics == nil || doc.Trends == nil {
		t.Error("missing lists should expand to empty slices, not nil")
	}
}
