// Package agent extracts raw measurements from health report photos using a
// multimodal LLM with a structured save tool.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
	"google.golang.org/genai"

	"healthlens_backend/internal/measurements/domain"
	"healthlens_backend/platform/ai/moonshot"
	"healthlens_backend/platform/config"
	"healthlens_backend/platform/logger"
)

// ImageData is one report image to extract from.
type ImageData struct {
	MIMEType string
	Data     []byte
	Filename string
}

// ExtractionRequest carries the images plus optional context for one run.
type ExtractionRequest struct {
	UserID uuid.UUID
	Images []ImageData
	// Hint is free text the user attached, e.g. "morning scale readout".
	Hint string
}

// extractorDeps accumulates tool output across a run. The runner executes
// tools on its own goroutines, so access is mutex guarded.
type extractorDeps struct {
	mu       sync.RWMutex
	rows     []domain.Extracted
	saveSeen bool
}

func (d *extractorDeps) save(rows []domain.Extracted) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows = append(d.rows, rows...)
	d.saveSeen = true
}

func (d *extractorDeps) result() ([]domain.Extracted, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rows, d.saveSeen
}

func (d *extractorDeps) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows = nil
	d.saveSeen = false
}

// ReportExtractor runs the extraction agent over report images.
type ReportExtractor struct {
	runner         *runner.Runner
	sessionService session.Service
	appName        string
	deps           *extractorDeps
	log            *logger.Logger
	runMu          sync.Mutex
}

// NewReportExtractor creates the extraction agent.
func NewReportExtractor(cfg config.ExtractionConfig, log *logger.Logger) (*ReportExtractor, error) {
	kimi := moonshot.NewModel(moonshot.Config{
		APIKey: cfg.GetMoonshotAPIKey(),
		Model:  cfg.GetExtractionModel(),
	})

	deps := &extractorDeps{}
	extractor := &ReportExtractor{
		appName: "report_extractor",
		deps:    deps,
		log:     log,
	}

	tools, err := buildExtractorTools(deps, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build extractor tools: %w", err)
	}

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "ReportExtractor",
		Model:       kimi,
		Description: "Reads health report and device photos and extracts every numeric measurement",
		Instruction: extractorInstruction,
		Tools:       tools,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        extractor.appName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor runner: %w", err)
	}

	extractor.runner = r
	extractor.sessionService = sessionService
	return extractor, nil
}

// Extract runs the agent over the request images and returns the raw rows the
// model saved. Rows are unnormalized; the ingestion pipeline takes over.
func (e *ReportExtractor) Extract(ctx context.Context, req ExtractionRequest) ([]domain.Extracted, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if len(req.Images) == 0 {
		return nil, fmt.Errorf("no images provided")
	}

	e.deps.reset()

	userID, sessionID, err := e.createSession(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	defer e.cleanupSession(ctx, userID, sessionID)

	if err := e.run(ctx, userID, sessionID, buildUserContent(req)); err != nil {
		return nil, err
	}

	rows, saved := e.deps.result()
	if !saved {
		// Tool-call misses happen; one nudge usually recovers the run.
		if err := e.run(ctx, userID, sessionID, retryContent()); err != nil {
			return nil, err
		}
		rows, saved = e.deps.result()
		if !saved {
			// Malformed model output degrades to an empty batch; the caller
			// reports it, the upload never fails on it.
			e.log.Warn("extraction model never called the save tool", "userId", req.UserID.String())
			return nil, nil
		}
	}

	e.log.Info("report extraction complete", "userId", req.UserID.String(), "rows", len(rows))
	return rows, nil
}

func (e *ReportExtractor) createSession(ctx context.Context, userID uuid.UUID) (string, string, error) {
	sessionUser := fmt.Sprintf("report-extractor-%s", userID)
	sessionID := uuid.New().String()

	_, err := e.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   e.appName,
		UserID:    sessionUser,
		SessionID: sessionID,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create session: %w", err)
	}
	return sessionUser, sessionID, nil
}

func (e *ReportExtractor) cleanupSession(ctx context.Context, userID, sessionID string) {
	if err := e.sessionService.Delete(ctx, &session.DeleteRequest{
		AppName:   e.appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		e.log.Warn("failed to delete extraction session", "error", err)
	}
}

func (e *ReportExtractor) run(ctx context.Context, userID, sessionID string, content *genai.Content) error {
	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}
	for _, err := range e.runner.Run(ctx, userID, sessionID, content, runConfig) {
		if err != nil {
			return fmt.Errorf("extraction run failed: %w", err)
		}
	}
	return nil
}

func buildUserContent(req ExtractionRequest) *genai.Content {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: img.MIMEType,
				Data:     img.Data,
			},
		})
	}

	prompt := fmt.Sprintf("Extract every numeric health measurement from the %d attached photo(s).", len(req.Images))
	if req.Hint != "" {
		prompt += fmt.Sprintf("\n\nUser context: %s", req.Hint)
	}
	prompt += "\n\nWhen done you MUST call SaveMeasurements with all rows."
	parts = append(parts, genai.NewPartFromText(prompt))

	return &genai.Content{Role: "user", Parts: parts}
}

func retryContent() *genai.Content {
	return &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			genai.NewPartFromText("You MUST call the SaveMeasurements tool now with every measurement you found, even if the list is empty."),
		},
	}
}

// MeasurementRow is one extracted row as the model reports it.
type MeasurementRow struct {
	Name       string  `json:"name" description:"The measurement label exactly as printed, e.g. 'Waga' or 'Blood Glucose'"`
	Value      float64 `json:"value" description:"Numeric value exactly as printed, without unit"`
	Unit       string  `json:"unit" description:"Unit exactly as printed, e.g. 'kg', 'mg/dL', 'bpm'"`
	MeasuredAt string  `json:"measuredAt,omitempty" description:"Date or datetime printed on the report in RFC 3339 or YYYY-MM-DD form, if visible"`
}

// SaveMeasurementsInput is the input schema for the SaveMeasurements tool.
type SaveMeasurementsInput struct {
	Measurements []MeasurementRow `json:"measurements" description:"Every measurement visible in the photos"`
}

// SaveMeasurementsOutput is the tool's result.
type SaveMeasurementsOutput struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

func buildExtractorTools(deps *extractorDeps, log *logger.Logger) ([]tool.Tool, error) {
	saveMeasurements, err := functiontool.New(functiontool.Config{
		Name:        "SaveMeasurements",
		Description: "Save the measurements read from the photos. Call this exactly once after reading all photos, with every row found.",
	}, func(ctx tool.Context, args SaveMeasurementsInput) (SaveMeasurementsOutput, error) {
		rows := make([]domain.Extracted, 0, len(args.Measurements))
		for _, m := range args.Measurements {
			row := domain.Extracted{
				Name:  strings.TrimSpace(m.Name),
				Value: m.Value,
				Unit:  strings.TrimSpace(m.Unit),
			}
			if ts := parseReportTime(m.MeasuredAt); ts != nil {
				row.MeasuredAt = ts
			}
			rows = append(rows, row)
		}

		deps.save(rows)
		log.Info("extraction rows saved", "count", len(rows))
		return SaveMeasurementsOutput{Success: true, Count: len(rows), Message: "Measurements saved"}, nil
	})
	if err != nil {
		return nil, err
	}

	return []tool.Tool{saveMeasurements}, nil
}

func parseReportTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02", "02.01.2006", "02/01/2006"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}

const extractorInstruction = `You are a precise OCR agent for personal health data.

Goal:
- Read photos of lab reports, smart scale screens, blood pressure monitors, and fitness apps.
- Extract every numeric measurement with its printed label, value, and unit.

Rules:
- Copy labels exactly as printed, in their original language. Do not translate.
- Copy values exactly as printed. Never convert units or round.
- If a unit is not printed next to the value, use the unit from the column header or leave it empty.
- If a measurement date is printed anywhere on the report, attach it to every row.
- Skip reference ranges, target values, and percentages of goals. Only actual readings count.
- If a value is unreadable, skip that row rather than guessing.

Required action:
- After reading all photos you MUST call SaveMeasurements with the complete list.`
