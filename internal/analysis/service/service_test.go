package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"healthlens_backend/internal/analysis/domain"
	"healthlens_backend/internal/analysis/generator"
	"healthlens_backend/internal/analysis/repository"
	"healthlens_backend/internal/events"
	"healthlens_backend/platform/ai/gemini"
	"healthlens_backend/platform/apperr"
	"healthlens_backend/platform/logger"
)

type fakeRepo struct {
	records []repository.Record
}

func (f *fakeRepo) Insert(ctx context.Context, params repository.InsertParams) (repository.Record, error) {
	rec := repository.Record{
		ID:                   uuid.New(),
		UserID:               params.UserID,
		Status:               params.Status,
		ErrorCode:            params.ErrorCode,
		MeasurementsSnapshot: params.MeasurementsSnapshot,
		MetricsCount:         params.MetricsCount,
		DateRangeStart:       params.DateRangeStart,
		DateRangeEnd:         params.DateRangeEnd,
		ModelVersion:         params.ModelVersion,
		PromptTokens:         params.PromptTokens,
		CompletionTokens:     params.CompletionTokens,
		TotalCostUSD:         params.TotalCostUSD,
		FullResponse:         params.FullResponse,
		CreatedAt:            time.Now(),
	}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (repository.Record, error) {
	for _, rec := range f.records {
		if rec.ID == id && rec.UserID == userID {
			return rec, nil
		}
	}
	return repository.Record{}, apperr.NotFound("analysis not found")
}

func (f *fakeRepo) LatestCompleted(ctx context.Context, userID uuid.UUID) (*repository.Record, error) {
	var latest *repository.Record
	for i := range f.records {
		rec := &f.records[i]
		if rec.UserID != userID || rec.Status != repository.StatusCompleted {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	return latest, nil
}

func (f *fakeRepo) CountCompletedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	count := 0
	for _, rec := range f.records {
		if rec.UserID == userID && rec.Status == repository.StatusCompleted && !rec.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]repository.Record, int, error) {
	return f.records, len(f.records), nil
}

func (f *fakeRepo) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeGenerator struct {
	calls int
	out   generator.Output
	err   error
}

func (f *fakeGenerator) Generate(ctx context.Context, userID, csv string) (generator.Output, error) {
	f.calls++
	return f.out, f.err
}

type fakeMeasurements struct {
	rows []domain.Row
}

func (f *fakeMeasurements) Rows(ctx context.Context, userID uuid.UUID) ([]domain.Row, error) {
	return f.rows, nil
}

type fakeProfiles struct {
	subject domain.Subject
}

func (f *fakeProfiles) Subject(ctx context.Context, userID uuid.UUID) (domain.Subject, error) {
	return f.subject, nil
}

type captureBus struct {
	published []events.Event
}

func (b *captureBus) Publish(ctx context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *captureBus) PublishSync(ctx context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *captureBus) Subscribe(eventName string, handler events.Handler) {}

type gateConfig struct{}

func (gateConfig) GetCatalogCacheTTL() time.Duration { return 15 * time.Minute }
func (gateConfig) GetFreshnessWindow() time.Duration { return time.Hour }
func (gateConfig) GetDailyAnalysisQuota() int        { return 3 }
func (gateConfig) GetCSVPerMetricCap() int           { return 15 }
func (gateConfig) GetFuzzyMatchThreshold() float64   { return 0.80 }
func (gateConfig) GetRecentMeasurementLimit() int    { return 200 }

func sampleRows() []domain.Row {
	return []domain.Row{
		{Metric: "weight", Value: 82.5, Unit: "kg", MeasuredAt: time.Now().Add(-48 * time.Hour)},
		{Metric: "glucose", Value: 95, Unit: "mg/dL", MeasuredAt: time.Now().Add(-24 * time.Hour)},
	}
}

func goodOutput() generator.Output {
	return generator.Output{
		Document: domain.AbbreviatedDocument{
			Summary:         "stable",
			KeyFindings:     []domain.AbbreviatedFinding{},
			Recommendations: []domain.AbbreviatedRecommend{{Action: "keep tracking"}},
		},
		Usage:   gemini.Usage{PromptTokens: 120, CompletionTokens: 60},
		ModelID: "test-model",
		CostUSD: 0.0005,
	}
}

func testService(repo *fakeRepo, gen *fakeGenerator, rows []domain.Row) (*Service, *captureBus) {
	bus := &captureBus{}
	svc := New(repo, gen, &fakeMeasurements{rows: rows}, &fakeProfiles{}, bus, gateConfig{}, logger.New("test"))
	return svc, bus
}

func completedRecord(userID uuid.UUID, age time.Duration) repository.Record {
	doc, _ := json.Marshal(domain.ExpandDocument(domain.AbbreviatedDocument{Summary: "prior run"}))
	return repository.Record{
		ID:           uuid.New(),
		UserID:       userID,
		Status:       repository.StatusCompleted,
		ModelVersion: "test-model",
		FullResponse: doc,
		CreatedAt:    time.Now().Add(-age),
	}
}

func TestRequestAnalysisGeneratesAndPersists(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{}
	gen := &fakeGenerator{out: goodOutput()}
	svc, bus := testService(repo, gen, sampleRows())

	resp, err := svc.RequestAnalysis(context.Background(), userID, false)
	if err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
	if resp.Status != repository.StatusCompleted {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Document.Summary != "stable" {
		t.Errorf("document = %+v", resp.Document)
	}
	if resp.MetricsCount != 2 {
		t.Errorf("metrics count = %d, want 2", resp.MetricsCount)
	}
	if len(repo.records) != 1 || repo.records[0].Status != repository.StatusCompleted {
		t.Fatalf("records = %+v", repo.records)
	}
	if repo.records[0].PromptTokens != 120 || repo.records[0].TotalCostUSD != 0.0005 {
		t.Errorf("cost accounting not persisted: %+v", repo.records[0])
	}

	var completed *events.AnalysisCompleted
	for _, ev := range bus.published {
		if e, ok := ev.(events.AnalysisCompleted); ok {
			completed = &e
		}
	}
	if completed == nil || completed.FromCache {
		t.Fatalf("expected a fresh AnalysisCompleted event, got %+v", bus.published)
	}
}

func TestRequestAnalysisServesFreshCacheWithoutGenerating(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{records: []repository.Record{completedRecord(userID, 30 * time.Minute)}}
	gen := &fakeGenerator{out: goodOutput()}
	svc, bus := testService(repo, gen, sampleRows())

	resp, err := svc.RequestAnalysis(context.Background(), userID, false)
	if err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator calls = %d, want 0", gen.calls)
	}
	if resp.Status != "cached" {
		t.Errorf("status = %q, want cached", resp.Status)
	}
	if resp.Document.Summary != "prior run" {
		t.Errorf("document = %+v", resp.Document)
	}
	if len(repo.records) != 1 {
		t.Errorf("cache hit must not persist a new record, got %d", len(repo.records))
	}

	if len(bus.published) != 1 {
		t.Fatalf("events = %+v", bus.published)
	}
	if e, ok := bus.published[0].(events.AnalysisCompleted); !ok || !e.FromCache {
		t.Errorf("expected FromCache event, got %+v", bus.published[0])
	}
}

func TestRequestAnalysisQuotaExceeded(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{records: []repository.Record{
		completedRecord(userID, 2*time.Hour),
		completedRecord(userID, 5*time.Hour),
		completedRecord(userID, 9*time.Hour),
	}}
	gen := &fakeGenerator{out: goodOutput()}
	svc, _ := testService(repo, gen, sampleRows())

	_, err := svc.RequestAnalysis(context.Background(), userID, false)
	if apperr.GetKind(err) != apperr.KindRateLimited {
		t.Fatalf("err = %v, want rate limited", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator calls = %d, want 0", gen.calls)
	}
}

// A fresh cached document wins even when the caller is already at quota.
func TestRequestAnalysisCachePrecedesQuota(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{records: []repository.Record{
		completedRecord(userID, 30*time.Minute),
		completedRecord(userID, 5*time.Hour),
		completedRecord(userID, 9*time.Hour),
	}}
	gen := &fakeGenerator{out: goodOutput()}
	svc, _ := testService(repo, gen, sampleRows())

	resp, err := svc.RequestAnalysis(context.Background(), userID, false)
	if err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	if resp.Status != "cached" {
		t.Errorf("status = %q, want cached", resp.Status)
	}
	if gen.calls != 0 {
		t.Errorf("generator calls = %d, want 0", gen.calls)
	}
}

func TestRequestAnalysisAdminBypassesQuota(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{records: []repository.Record{
		completedRecord(userID, 2*time.Hour),
		completedRecord(userID, 5*time.Hour),
		completedRecord(userID, 9*time.Hour),
	}}
	gen := &fakeGenerator{out: goodOutput()}
	svc, _ := testService(repo, gen, sampleRows())

	if _, err := svc.RequestAnalysis(context.Background(), userID, true); err != nil {
		t.Fatalf("RequestAnalysis: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
}

func TestRequestAnalysisNoMeasurements(t *testing.T) {
	userID := uuid.New()
	gen := &fakeGenerator{out: goodOutput()}
	svc, _ := testService(&fakeRepo{}, gen, nil)

	_, err := svc.RequestAnalysis(context.Background(), userID, false)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("err = %v, want validation", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator calls = %d, want 0", gen.calls)
	}
}

func TestRequestAnalysisGenerationFailureIsRecorded(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepo{}
	gen := &fakeGenerator{
		out: generator.Output{Usage: gemini.Usage{PromptTokens: 200}},
		err: &generator.GenerationError{
			Code:    generator.CodeSchemaValidationFailed,
			Message: "model output did not match the response schema",
		},
	}
	svc, bus := testService(repo, gen, sampleRows())

	_, err := svc.RequestAnalysis(context.Background(), userID, false)
	if apperr.GetKind(err) != apperr.KindUpstream {
		t.Fatalf("err = %v, want upstream", err)
	}
	if apperr.GetCode(err) != generator.CodeSchemaValidationFailed {
		t.Errorf("code = %q", apperr.GetCode(err))
	}

	if len(repo.records) != 1 {
		t.Fatalf("records = %+v", repo.records)
	}
	rec := repo.records[0]
	if rec.Status != repository.StatusFailed || rec.ErrorCode == nil || *rec.ErrorCode != generator.CodeSchemaValidationFailed {
		t.Errorf("failed record = %+v", rec)
	}
	if rec.PromptTokens != 200 {
		t.Errorf("failed attempt usage should be persisted, got %+v", rec)
	}

	if len(bus.published) != 1 {
		t.Fatalf("events = %+v", bus.published)
	}
	if _, ok := bus.published[0].(events.AnalysisFailed); !ok {
		t.Errorf("expected AnalysisFailed, got %+v", bus.published[0])
	}

	// A failed run does not count against the quota or populate the cache.
	gen.err = nil
	gen.out = goodOutput()
	if _, err := svc.RequestAnalysis(context.Background(), userID, false); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
}

func TestRequestAnalysisMapsUpstreamTimeout(t *testing.T) {
	userID := uuid.New()
	gen := &fakeGenerator{err: context.DeadlineExceeded}
	svc, _ := testService(&fakeRepo{}, gen, sampleRows())

	_, err := svc.RequestAnalysis(context.Background(), userID, false)
	if apperr.GetKind(err) != apperr.KindUpstream {
		t.Fatalf("err = %v, want upstream", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("cause not preserved: %v", err)
	}
}
