// Package domain holds the pure analysis pipeline pieces: the generator wire
// schema, the CSV projection handed to the model, and the cache/rate gate.
package domain

import (
	"encoding/json"
	"fmt"
)

// AbbreviatedDocument is the compact wire format the generator is instructed
// to emit. Short field names keep completion token counts down.
type AbbreviatedDocument struct {
	Summary         string                 `json:"s"`
	OverallStatus   string                 `json:"os,omitempty"`
	KeyFindings     []AbbreviatedFinding   `json:"kf"`
	Trends          []AbbreviatedTrend     `json:"tr,omitempty"`
	Recommendations []AbbreviatedRecommend `json:"rec"`
	RiskFactors     []string               `json:"rf,omitempty"`
	SuggestedMetric []string               `json:"sm,omitempty"`
	Disclaimer      string                 `json:"d,omitempty"`
}

// AbbreviatedFinding is one notable observation about a metric.
type AbbreviatedFinding struct {
	Metric   string `json:"m"`
	Finding  string `json:"f"`
	Severity string `json:"sev,omitempty"`
}

// AbbreviatedTrend describes the direction of a metric over time.
type AbbreviatedTrend struct {
	Metric    string `json:"m"`
	Direction string `json:"dir,omitempty"`
	Note      string `json:"n,omitempty"`
}

// AbbreviatedRecommend is one actionable suggestion.
type AbbreviatedRecommend struct {
	Area     string `json:"a,omitempty"`
	Action   string `json:"t"`
	Priority string `json:"p,omitempty"`
}

// ParseAbbreviated decodes generator output and checks the required shape:
// s, kf and rec must be present, kf items need m and f, rec items need t.
func ParseAbbreviated(raw []byte) (AbbreviatedDocument, error) {
	var doc AbbreviatedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return AbbreviatedDocument{}, fmt.Errorf("invalid json: %w", err)
	}

	if doc.Summary == "" {
		return AbbreviatedDocument{}, fmt.Errorf("missing required field %q", "s")
	}
	if doc.KeyFindings == nil {
		return AbbreviatedDocument{}, fmt.Errorf("missing required field %q", "kf")
	}
	if doc.Recommendations == nil {
		return AbbreviatedDocument{}, fmt.Errorf("missing required field %q", "rec")
	}
	for i, kf := range doc.KeyFindings {
		if kf.Metric == "" || kf.Finding == "" {
			return AbbreviatedDocument{}, fmt.Errorf("key finding %d missing metric or finding", i)
		}
	}
	for i, rec := range doc.Recommendations {
		if rec.Action == "" {
			return AbbreviatedDocument{}, fmt.Errorf("recommendation %d missing action", i)
		}
	}

	return doc, nil
}

// Document is the full persisted analysis shape served to clients.
type Document struct {
	Summary          string           `json:"summary"`
	OverallStatus    string           `json:"overallStatus"`
	KeyFindings      []KeyFinding     `json:"keyFindings"`
	Trends           []Trend          `json:"trends"`
	Recommendations  []Recommendation `json:"recommendations"`
	RiskFactors      []string         `json:"riskFactors"`
	SuggestedMetrics []string         `json:"suggestedMetrics"`
	Disclaimer       string           `json:"disclaimer"`
}

// KeyFinding is one notable observation in the full document.
type KeyFinding struct {
	Metric   string `json:"metric"`
	Finding  string `json:"finding"`
	Severity string `json:"severity"`
}

// Trend is one metric direction in the full document.
type Trend struct {
	Metric    string `json:"metric"`
	Direction string `json:"direction"`
	Note      string `json:"note"`
}

// Recommendation is one actionable suggestion in the full document.
type Recommendation struct {
	Area     string `json:"area"`
	Action   string `json:"action"`
	Priority string `json:"priority"`
}

// ExpandDocument maps the abbreviated wire format to the full document. The
// expansion is total: absent lists become empty slices and absent scalars
// become empty strings, never nulls.
func ExpandDocument(ab AbbreviatedDocument) Document {
	doc := Document{
		Summary:          ab.Summary,
		OverallStatus:    ab.OverallStatus,
		KeyFindings:      make([]KeyFinding, 0, len(ab.KeyFindings)),
		Trends:           make([]Trend, 0, len(ab.Trends)),
		Recommendations:  make([]Recommendation, 0, len(ab.Recommendations)),
		RiskFactors:      ab.RiskFactors,
		SuggestedMetrics: ab.SuggestedMetric,
		Disclaimer:       ab.Disclaimer,
	}

	for _, kf := range ab.KeyFindings {
		doc.KeyFindings = append(doc.KeyFindings, KeyFinding(kf))
	}
	for _, tr := range ab.Trends {
		doc.Trends = append(doc.Trends, Trend(tr))
	}
	for _, rec := range ab.Recommendations {
		doc.Recommendations = append(doc.Recommendations, Recommendation(rec))
	}

	if doc.RiskFactors == nil {
		doc.RiskFactors = []string{}
	}
	if doc.SuggestedMetrics == nil {
		doc.SuggestedMetrics = []string{}
	}

	return doc
}
