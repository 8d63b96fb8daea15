package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"healthlens_backend/platform/ai/gemini"
	"healthlens_backend/platform/logger"
)

type fakeModel struct {
	responses []gemini.Result
	errs      []error
	calls     int
	systems   []string
}

func (f *fakeModel) GenerateText(ctx context.Context, req gemini.Request) (gemini.Result, error) {
	i := f.calls
	f.calls++
	f.systems = append(f.systems, req.System)
	if req.Temperature != 0 {
		return gemini.Result{}, errors.New("temperature must be 0")
	}
	if !req.JSONMode {
		return gemini.Result{}, errors.New("json mode must be requested")
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return gemini.Result{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return gemini.Result{}, errors.New("unexpected extra call")
}

type genConfig struct {
	attempts int
	timeout  time.Duration
}

func (c genConfig) GetGeminiAPIKey() string            { return "test-key" }
func (c genConfig) GetGenerationModel() string         { return "test-model" }
func (c genConfig) GetGeneratorAttempts() int          { return c.attempts }
func (c genConfig) GetGeneratorTimeout() time.Duration { return c.timeout }
func (c genConfig) GetPromptTokenRateUSD() float64     { return 0.000001 }
func (c genConfig) GetCompletionTokenRateUSD() float64 { return 0.000004 }

const validResponse = `{"s": "looks fine", "kf": [], "rec": [{"t": "keep tracking weight"}]}`

func newGenerator(model TextModel) *Generator {
	return New(model, genConfig{attempts: 2, timeout: time.Minute}, logger.New("test"))
}

func TestGenerateFirstAttemptSucceeds(t *testing.T) {
	model := &fakeModel{responses: []gemini.Result{
		{Text: validResponse, Usage: gemini.Usage{PromptTokens: 100, CompletionTokens: 50}, ModelID: "test-model-001"},
	}}

	out, err := newGenerator(model).Generate(context.Background(), "user-1", "metric,value,unit,date\n")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if model.calls != 1 {
		t.Errorf("model calls = %d, want 1", model.calls)
	}
	if out.Document.Summary != "looks fine" {
		t.Errorf("summary = %q", out.Document.Summary)
	}
	if out.ModelID != "test-model-001" {
		t.Errorf("model id = %q", out.ModelID)
	}
	wantCost := 100*0.000001 + 50*0.000004
	if out.CostUSD != wantCost {
		t.Errorf("cost = %v, want %v", out.CostUSD, wantCost)
	}
}

func TestGenerateRetriesWithStricterDirective(t *testing.T) {
	model := &fakeModel{responses: []gemini.Result{
		{Text: "I analyzed your data and everything looks great!", Usage: gemini.Usage{PromptTokens: 100, CompletionTokens: 30}},
		{Text: validResponse, Usage: gemini.Usage{PromptTokens: 110, CompletionTokens: 40}},
	}}

	out, err := newGenerator(model).Generate(context.Background(), "user-1", "csv")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if model.calls != 2 {
		t.Fatalf("model calls = %d, want 2", model.calls)
	}
	if strings.Contains(model.systems[0], "ONLY a valid JSON object") {
		t.Error("first attempt should not carry the stricter directive")
	}
	if !strings.Contains(model.systems[1], "ONLY a valid JSON object") {
		t.Error("retry should append the stricter directive")
	}
	// Usage accumulates across both attempts.
	if out.Usage.PromptTokens != 210 || out.Usage.CompletionTokens != 70 {
		t.Errorf("usage = %+v", out.Usage)
	}
}

func TestGenerateTerminalAfterTwoSchemaFailures(t *testing.T) {
	model := &fakeModel{responses: []gemini.Result{
		{Text: "not json"},
		{Text: `{"kf": [], "rec": []}`},
	}}

	_, err := newGenerator(model).Generate(context.Background(), "user-1", "csv")
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if model.calls != 2 {
		t.Errorf("model calls = %d, want exactly 2", model.calls)
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type = %T", err)
	}
	if genErr.Code != CodeSchemaValidationFailed {
		t.Errorf("code = %q, want %q", genErr.Code, CodeSchemaValidationFailed)
	}
}

func TestGenerateTransportErrorRetriedThenSurfaced(t *testing.T) {
	upstream := errors.New("rpc deadline")
	model := &fakeModel{
		errs:      []error{upstream, upstream},
		responses: []gemini.Result{{}, {}},
	}

	_, err := newGenerator(model).Generate(context.Background(), "user-1", "csv")
	if !errors.Is(err, upstream) {
		t.Fatalf("err = %v, want wrapped transport error", err)
	}
	if model.calls != 2 {
		t.Errorf("model calls = %d, want 2", model.calls)
	}
}

func TestGenerateUnwrapsFencedJSON(t *testing.T) {
	model := &fakeModel{responses: []gemini.Result{
		{Text: "```json\n" + validResponse + "\n```"},
	}}

	out, err := newGenerator(model).Generate(context.Background(), "user-1", "csv")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out.Document.Recommendations) != 1 {
		t.Errorf("document = %+v", out.Document)
	}
}
