// Package service implements the analysis use cases: the gated request flow,
// history listing, and retrieval.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"healthlens_backend/internal/analysis/domain"
	"healthlens_backend/internal/analysis/generator"
	"healthlens_backend/internal/analysis/repository"
	"healthlens_backend/internal/analysis/transport"
	"healthlens_backend/internal/events"
	"healthlens_backend/platform/ai/gemini"
	"healthlens_backend/platform/apperr"
	"healthlens_backend/platform/config"
	"healthlens_backend/platform/logger"
)

// MeasurementSource supplies the user's measurement history for projection.
type MeasurementSource interface {
	Rows(ctx context.Context, userID uuid.UUID) ([]domain.Row, error)
}

// ProfileSource supplies the demographic preamble. An absent profile yields a
// zero Subject, not an error.
type ProfileSource interface {
	Subject(ctx context.Context, userID uuid.UUID) (domain.Subject, error)
}

// DocumentGenerator produces a validated abbreviated document from a CSV
// projection.
type DocumentGenerator interface {
	Generate(ctx context.Context, userID, csv string) (generator.Output, error)
}

// Service implements analysis use cases.
type Service struct {
	repo         repository.Repository
	generator    DocumentGenerator
	measurements MeasurementSource
	profiles     ProfileSource
	bus          events.Bus
	cfg          config.PipelineConfig
	log          *logger.Logger
	now          func() time.Time
}

// New creates an analysis service.
func New(
	repo repository.Repository,
	gen DocumentGenerator,
	measurements MeasurementSource,
	profiles ProfileSource,
	bus events.Bus,
	cfg config.PipelineConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:         repo,
		generator:    gen,
		measurements: measurements,
		profiles:     profiles,
		bus:          bus,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// RequestAnalysis serves a health analysis for the user. A completed record
// younger than the freshness window is returned as-is before any quota check,
// so repeated requests inside the window are idempotent. Past the window,
// non-admin users are held to the daily quota before a new generation runs.
func (s *Service) RequestAnalysis(ctx context.Context, userID uuid.UUID, isAdmin bool) (transport.AnalysisResponse, error) {
	now := s.now()

	latest, err := s.repo.LatestCompleted(ctx, userID)
	if err != nil {
		return transport.AnalysisResponse{}, err
	}
	count, err := s.repo.CountCompletedSince(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return transport.AnalysisResponse{}, err
	}

	var latestAt *time.Time
	if latest != nil {
		latestAt = &latest.CreatedAt
	}
	policy := domain.GatePolicy{
		FreshnessWindow: s.cfg.GetFreshnessWindow(),
		DailyQuota:      s.cfg.GetDailyAnalysisQuota(),
	}

	switch domain.DecideGate(latestAt, count, isAdmin, policy, now) {
	case domain.GateCached:
		return s.serveCached(ctx, *latest)
	case domain.GateRateLimited:
		s.log.Warn("daily analysis quota reached", "userId", userID, "completedLast24h", count)
		return transport.AnalysisResponse{}, apperr.RateLimited("daily analysis limit reached")
	}

	return s.generate(ctx, userID)
}

// serveCached replays a fresh prior record without touching the generator.
func (s *Service) serveCached(ctx context.Context, rec repository.Record) (transport.AnalysisResponse, error) {
	doc, err := decodeDocument(rec.FullResponse)
	if err != nil {
		return transport.AnalysisResponse{}, err
	}

	s.bus.Publish(ctx, events.AnalysisCompleted{
		BaseEvent:        events.NewBaseEvent(),
		AnalysisID:       rec.ID,
		UserID:           rec.UserID,
		ModelID:          rec.ModelVersion,
		PromptTokens:     rec.PromptTokens,
		CompletionTokens: rec.CompletionTokens,
		CostUSD:          rec.TotalCostUSD,
		FromCache:        true,
	})

	resp := toResponse(rec, doc)
	resp.Status = transport.StatusCached
	return resp, nil
}

// generate runs the full pipeline: project history to CSV, call the
// generator, expand the document and persist the outcome. A generation
// failure is persisted as a failed record before the error surfaces.
func (s *Service) generate(ctx context.Context, userID uuid.UUID) (transport.AnalysisResponse, error) {
	rows, err := s.measurements.Rows(ctx, userID)
	if err != nil {
		return transport.AnalysisResponse{}, err
	}
	if len(rows) == 0 {
		return transport.AnalysisResponse{}, apperr.Validation("no measurements to analyze")
	}

	subject, err := s.profiles.Subject(ctx, userID)
	if err != nil {
		return transport.AnalysisResponse{}, err
	}

	csv := domain.ProjectCSV(subject, rows, s.cfg.GetCSVPerMetricCap())
	start, end := domain.DateRange(rows)
	metricsCount := domain.MetricsCount(rows)

	out, genErr := s.generator.Generate(ctx, userID.String(), csv)
	if genErr != nil {
		s.recordFailure(ctx, userID, csv, metricsCount, start, end, out, genErr)
		return transport.AnalysisResponse{}, mapGenerationError(genErr)
	}

	doc := domain.ExpandDocument(out.Document)
	full, err := json.Marshal(doc)
	if err != nil {
		return transport.AnalysisResponse{}, fmt.Errorf("encode analysis document: %w", err)
	}

	rec, err := s.repo.Insert(ctx, repository.InsertParams{
		UserID:               userID,
		Status:               repository.StatusCompleted,
		MeasurementsSnapshot: csv,
		MetricsCount:         metricsCount,
		DateRangeStart:       start,
		DateRangeEnd:         end,
		ModelVersion:         out.ModelID,
		PromptTokens:         out.Usage.PromptTokens,
		CompletionTokens:     out.Usage.CompletionTokens,
		TotalCostUSD:         out.CostUSD,
		FullResponse:         full,
	})
	if err != nil {
		return transport.AnalysisResponse{}, err
	}

	s.bus.Publish(ctx, events.AnalysisCompleted{
		BaseEvent:        events.NewBaseEvent(),
		AnalysisID:       rec.ID,
		UserID:           userID,
		ModelID:          rec.ModelVersion,
		PromptTokens:     rec.PromptTokens,
		CompletionTokens: rec.CompletionTokens,
		CostUSD:          rec.TotalCostUSD,
		FromCache:        false,
	})

	return toResponse(rec, doc), nil
}

// recordFailure persists a failed record so the run is visible in history.
// Persistence errors here are logged, not surfaced; the caller still gets the
// generation error.
func (s *Service) recordFailure(
	ctx context.Context,
	userID uuid.UUID,
	csv string,
	metricsCount int,
	start, end *time.Time,
	out generator.Output,
	genErr error,
) {
	code := errorCode(genErr)
	rec, err := s.repo.Insert(ctx, repository.InsertParams{
		UserID:               userID,
		Status:               repository.StatusFailed,
		ErrorCode:            &code,
		MeasurementsSnapshot: csv,
		MetricsCount:         metricsCount,
		DateRangeStart:       start,
		DateRangeEnd:         end,
		ModelVersion:         out.ModelID,
		PromptTokens:         out.Usage.PromptTokens,
		CompletionTokens:     out.Usage.CompletionTokens,
		TotalCostUSD:         out.CostUSD,
		FullResponse:         []byte("{}"),
	})
	if err != nil {
		s.log.Error("failed to record analysis failure", "error", err, "userId", userID)
		return
	}

	s.bus.Publish(ctx, events.AnalysisFailed{
		BaseEvent:    events.NewBaseEvent(),
		AnalysisID:   rec.ID,
		UserID:       userID,
		ErrorCode:    code,
		ErrorMessage: genErr.Error(),
	})
}

// List returns the user's analysis history, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, req transport.ListAnalysesRequest) (transport.AnalysisListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	records, total, err := s.repo.List(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return transport.AnalysisListResponse{}, err
	}

	summaries := make([]transport.AnalysisSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, transport.ToSummary(rec))
	}
	return transport.AnalysisListResponse{
		Analyses: summaries,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Get returns one analysis with its full document.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (transport.AnalysisResponse, error) {
	rec, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return transport.AnalysisResponse{}, err
	}
	doc, err := decodeDocument(rec.FullResponse)
	if err != nil {
		return transport.AnalysisResponse{}, err
	}
	return toResponse(rec, doc), nil
}

func toResponse(rec repository.Record, doc domain.Document) transport.AnalysisResponse {
	return transport.AnalysisResponse{
		ID:               rec.ID,
		Status:           rec.Status,
		Document:         doc,
		MetricsCount:     rec.MetricsCount,
		DateRangeStart:   rec.DateRangeStart,
		DateRangeEnd:     rec.DateRangeEnd,
		ModelVersion:     rec.ModelVersion,
		PromptTokens:     rec.PromptTokens,
		CompletionTokens: rec.CompletionTokens,
		TotalCostUSD:     rec.TotalCostUSD,
		CreatedAt:        rec.CreatedAt,
	}
}

func decodeDocument(raw []byte) (domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("decode analysis document: %w", err)
	}
	return doc, nil
}

func errorCode(err error) string {
	var genErr *generator.GenerationError
	if errors.As(err, &genErr) {
		return genErr.Code
	}
	return string(gemini.Classify(err))
}

// mapGenerationError translates generator failures to API error kinds.
func mapGenerationError(err error) error {
	var genErr *generator.GenerationError
	if errors.As(err, &genErr) {
		return apperr.Wrap(apperr.KindUpstream, "analysis generation failed", err).WithCode(genErr.Code)
	}

	switch gemini.Classify(err) {
	case gemini.CauseQuota, gemini.CauseRateLimit:
		return apperr.Wrap(apperr.KindRateLimited, "analysis backend is rate limited", err)
	case gemini.CauseTimeout:
		return apperr.Wrap(apperr.KindUpstream, "analysis generation timed out", err)
	case gemini.CauseAuth:
		return apperr.Wrap(apperr.KindInternal, "analysis backend rejected credentials", err)
	default:
		return apperr.Wrap(apperr.KindUpstream, "analysis generation failed", err)
	}
}
