// Package gemini provides a thin text-completion client over the Gemini API.
// It exposes exactly what the analysis generator needs: system+user prompts,
// deterministic sampling, JSON response mode, and token usage for cost accounting.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"healthlens_backend/platform/config"

	"google.golang.org/genai"
)

// Request carries one completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	JSONMode    bool
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Result is the raw outcome of one completion request.
type Result struct {
	Text    string
	Usage   Usage
	ModelID string
}

// Client wraps the genai SDK for plain text completions.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini completion client.
func NewClient(ctx context.Context, cfg config.GeneratorConfig) (*Client, error) {
	if cfg.GetGeminiAPIKey() == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{client: client, model: cfg.GetGenerationModel()}, nil
}

// GenerateText runs one completion and returns the raw text plus usage metadata.
func (c *Client) GenerateText(ctx context.Context, req Request) (Result, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](req.Temperature),
	}
	if req.JSONMode {
		genCfg.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		return Result{}, err
	}

	result := Result{Text: resp.Text(), ModelID: c.model}
	if resp.ModelVersion != "" {
		result.ModelID = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	return result, nil
}

// Cause is the small fixed set of known upstream failure causes.
type Cause string

const (
	CauseQuota     Cause = "quota_exceeded"
	CauseAuth      Cause = "auth_failed"
	CauseTimeout   Cause = "timeout"
	CauseRateLimit Cause = "rate_limited"
	CauseUnknown   Cause = "unknown"
)

// Classify maps a transport error to a known cause. Anything unrecognized
// falls back to CauseUnknown.
func Classify(err error) Cause {
	if err == nil {
		return CauseUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CauseTimeout
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			return CauseAuth
		case 429:
			if strings.Contains(strings.ToUpper(apiErr.Status), "RESOURCE_EXHAUSTED") {
				return CauseQuota
			}
			return CauseRateLimit
		}
	}

	return CauseUnknown
}
