// Package generator invokes the text model with a schema-constrained prompt
// and turns free-form completions into validated abbreviated documents.
package generator

import (
	"context"
	"strings"
	"time"

	"healthlens_backend/internal/analysis/domain"
	"healthlens_backend/platform/ai/gemini"
	"healthlens_backend/platform/config"
	"healthlens_backend/platform/logger"
)

// CodeSchemaValidationFailed marks the terminal failure after the model twice
// returned output that did not conform to the wire schema.
const CodeSchemaValidationFailed = "schema_validation_failed"

// GenerationError is a terminal generation failure. It is not retried.
type GenerationError struct {
	Code    string
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *GenerationError) Unwrap() error { return e.Err }

// TextModel is the completion backend. *gemini.Client satisfies it.
type TextModel interface {
	GenerateText(ctx context.Context, req gemini.Request) (gemini.Result, error)
}

// Output is a validated generation outcome plus its cost accounting inputs.
// Usage is summed over every attempt made, including a failed first one.
type Output struct {
	Document domain.AbbreviatedDocument
	Usage    gemini.Usage
	ModelID  string
	CostUSD  float64
}

// Generator runs the bounded-retry generation state machine.
type Generator struct {
	model          TextModel
	attempts       int
	timeout        time.Duration
	promptRate     float64
	completionRate float64
	log            *logger.Logger
}

const (
	defaultAttempts = 2
	defaultTimeout  = 60 * time.Second
)

// New creates a generator over the given completion backend.
func New(model TextModel, cfg config.GeneratorConfig, log *logger.Logger) *Generator {
	attempts := cfg.GetGeneratorAttempts()
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	timeout := cfg.GetGeneratorTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Generator{
		model:          model,
		attempts:       attempts,
		timeout:        timeout,
		promptRate:     cfg.GetPromptTokenRateUSD(),
		completionRate: cfg.GetCompletionTokenRateUSD(),
		log:            log,
	}
}

const systemInstruction = `You are a health data analyst. You receive a patient profile and a CSV table of health measurements.
Analyze the data and respond with a single JSON object using EXACTLY these abbreviated field names:
  "s":   summary of overall health picture (string, required)
  "os":  overall status, one of "good", "fair", "attention"
  "kf":  key findings, array of {"m": metric key, "f": finding, "sev": "low"|"moderate"|"high"} (required, may be empty)
  "tr":  trends, array of {"m": metric key, "dir": "up"|"down"|"stable", "n": note}
  "rec": recommendations, array of {"a": area, "t": action text, "p": "low"|"medium"|"high"} (required, may be empty)
  "rf":  risk factors, array of strings
  "sm":  suggested metrics to start tracking, array of strings
  "d":   short disclaimer
Base every finding only on the data provided. Do not diagnose. Respond with the JSON object and nothing else.`

const stricterDirective = `

IMPORTANT: your previous response was not valid. Return ONLY a valid JSON object matching the schema above. No markdown, no code fences, no commentary.`

// Generate runs up to the configured number of attempts against the model and
// returns a validated abbreviated document. A response that fails to parse or
// validate triggers one retry with a stricter directive appended to the
// instruction. A second consecutive schema failure is terminal and surfaces
// as a GenerationError with code schema_validation_failed.
func (g *Generator) Generate(ctx context.Context, userID, csv string) (Output, error) {
	var out Output
	var lastErr error

	for attempt := 1; attempt <= g.attempts; attempt++ {
		system := systemInstruction
		if attempt > 1 {
			system += stricterDirective
		}

		result, err := g.runAttempt(ctx, system, csv)
		out.Usage.PromptTokens += result.Usage.PromptTokens
		out.Usage.CompletionTokens += result.Usage.CompletionTokens
		if result.ModelID != "" {
			out.ModelID = result.ModelID
		}

		if err != nil {
			g.log.GenerationAttempt(userID, attempt, "transport_error")
			lastErr = err
			continue
		}

		doc, parseErr := domain.ParseAbbreviated([]byte(stripFences(result.Text)))
		if parseErr != nil {
			g.log.GenerationAttempt(userID, attempt, "schema_invalid")
			lastErr = &GenerationError{
				Code:    CodeSchemaValidationFailed,
				Message: "model output did not match the response schema",
				Err:     parseErr,
			}
			continue
		}

		g.log.GenerationAttempt(userID, attempt, "ok")
		out.Document = doc
		out.CostUSD = g.cost(out.Usage)
		return out, nil
	}

	out.CostUSD = g.cost(out.Usage)
	return out, lastErr
}

// runAttempt executes one completion with its own deadline, bounded by
// whatever remains of the caller's budget.
func (g *Generator) runAttempt(ctx context.Context, system, csv string) (gemini.Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return g.model.GenerateText(attemptCtx, gemini.Request{
		System:      system,
		Prompt:      csv,
		Temperature: 0,
		JSONMode:    true,
	})
}

func (g *Generator) cost(u gemini.Usage) float64 {
	return float64(u.PromptTokens)*g.promptRate + float64(u.CompletionTokens)*g.completionRate
}

// stripFences removes a markdown code fence wrapper if the model added one
// despite JSON response mode.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
