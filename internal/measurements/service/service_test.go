package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"healthlens_backend/internal/events"
	"healthlens_backend/internal/measurements/agent"
	"healthlens_backend/internal/measurements/domain"
	"healthlens_backend/internal/measurements/repository"
	"healthlens_backend/internal/measurements/transport"
	"healthlens_backend/platform/apperr"
	"healthlens_backend/platform/logger"
)

type fakeRepo struct {
	stored   []repository.Measurement
	inserted []repository.InsertParams
}

func (f *fakeRepo) InsertBatch(ctx context.Context, batch []repository.InsertParams) ([]repository.Measurement, error) {
	f.inserted = append(f.inserted, batch...)
	out := make([]repository.Measurement, 0, len(batch))
	for _, p := range batch {
		m := repository.Measurement{
			ID:         uuid.New(),
			UserID:     p.UserID,
			MetricKey:  p.MetricKey,
			Value:      p.Value,
			Unit:       p.Unit,
			MeasuredAt: p.MeasuredAt,
			Source:     p.Source,
			FileKey:    p.FileKey,
			Confidence: p.Confidence,
			Notes:      p.Notes,
		}
		f.stored = append(f.stored, m)
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRepo) List(ctx context.Context, params repository.ListParams) ([]repository.Measurement, int, error) {
	return f.stored, len(f.stored), nil
}

func (f *fakeRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]repository.Measurement, error) {
	return f.stored, nil
}

func (f *fakeRepo) ListRecentByMetrics(ctx context.Context, userID uuid.UUID, metricKeys []string, perMetricLimit int) ([]repository.Measurement, error) {
	keys := make(map[string]bool, len(metricKeys))
	for _, k := range metricKeys {
		keys[k] = true
	}
	out := make([]repository.Measurement, 0, len(f.stored))
	for _, m := range f.stored {
		if keys[m.MetricKey] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (repository.Measurement, error) {
	for _, m := range f.stored {
		if m.ID == id {
			return m, nil
		}
	}
	return repository.Measurement{}, apperr.NotFound("measurement not found")
}

func (f *fakeRepo) Update(ctx context.Context, params repository.UpdateParams) (repository.Measurement, error) {
	return repository.Measurement{ID: params.ID, UserID: params.UserID}, nil
}

func (f *fakeRepo) Delete(ctx context.Context, userID, id uuid.UUID) error { return nil }

type mapCatalog map[string]domain.CatalogMetric

func (c mapCatalog) Get(key string) (domain.CatalogMetric, bool) {
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

type fakeCatalogSource struct{ catalog mapCatalog }

func (f *fakeCatalogSource) Catalog(ctx context.Context) (domain.Catalog, error) {
	return f.catalog, nil
}

type fakeExtractor struct {
	rows []domain.Extracted
}

func (f *fakeExtractor) Extract(ctx context.Context, req agent.ExtractionRequest) ([]domain.Extracted, error) {
	return f.rows, nil
}

type captureBus struct {
	published []events.Event
}

func (b *captureBus) Publish(ctx context.Context, event events.Event)          { b.published = append(b.published, event) }
func (b *captureBus) PublishSync(ctx context.Context, event events.Event) error { b.published = append(b.published, event); return nil }
func (b *captureBus) Subscribe(eventName string, handler events.Handler)        {}

type fakePipelineConfig struct{}

func (fakePipelineConfig) GetCatalogCacheTTL() time.Duration { return 15 * time.Minute }
func (fakePipelineConfig) GetFreshnessWindow() time.Duration { return time.Hour }
func (fakePipelineConfig) GetDailyAnalysisQuota() int        { return 3 }
func (fakePipelineConfig) GetCSVPerMetricCap() int           { return 15 }
func (fakePipelineConfig) GetFuzzyMatchThreshold() float64   { return 0.80 }
func (fakePipelineConfig) GetRecentMeasurementLimit() int    { return 200 }

func testService(t *testing.T, repo *fakeRepo, extractor Extractor) (*Service, *captureBus) {
	t.Helper()
	aliases, err := domain.LoadAliasTable("")
	if err != nil {
		t.Fatalf("LoadAliasTable() error = %v", err)
	}
	catalog := mapCatalog{
		"weight":     {MetricKey: "weight", DisplayName: "Weight", Unit: "kg", MinValue: 20, MaxValue: 300},
		"heart_rate": {MetricKey: "heart_rate", DisplayName: "Heart Rate", Unit: "bpm", MinValue: 20, MaxValue: 250},
	}
	bus := &captureBus{}
	svc := New(
		repo,
		domain.NewPipeline(domain.NewNormalizer(aliases, 0.80), domain.DefaultBands),
		&fakeCatalogSource{catalog: catalog},
		extractor,
		nil, "",
		bus,
		fakePipelineConfig{},
		logger.New("test"),
	)
	return svc, bus
}

func TestExtractFromImagesPreviewsWithoutPersisting(t *testing.T) {
	repo := &fakeRepo{}
	extractor := &fakeExtractor{rows: []domain.Extracted{
		{Name: "Waga", Value: 82.5, Unit: "kg"},
		{Name: "unknown_xyz", Value: 1, Unit: "u"},
	}}
	svc, _ := testService(t, repo, extractor)

	resp, err := svc.ExtractFromImages(context.Background(), uuid.New(),
		[]agent.ImageData{{MIMEType: "image/jpeg", Data: []byte{0xFF, 0xD8}}}, "")
	if err != nil {
		t.Fatalf("ExtractFromImages() error = %v", err)
	}

	if resp.Extracted != 2 {
		t.Fatalf("extracted = %d, want 2", resp.Extracted)
	}
	if resp.Eligible != 1 {
		t.Fatalf("eligible = %d, want 1 (unknown_xyz dropped)", resp.Eligible)
	}
	if resp.Candidates[0].MetricKey != "weight" {
		t.Fatalf("candidate metric = %q, want weight", resp.Candidates[0].MetricKey)
	}
	if !resp.Candidates[1].Dropped {
		t.Fatal("unknown_xyz candidate should be dropped")
	}
	if len(repo.inserted) != 0 {
		t.Fatalf("preview persisted %d rows, want 0", len(repo.inserted))
	}
}

func TestExtractMalformedModelOutputYieldsEmptyResult(t *testing.T) {
	repo := &fakeRepo{}
	// An extractor whose model never produced usable rows degrades to an
	// empty batch rather than an error.
	svc, _ := testService(t, repo, &fakeExtractor{})

	resp, err := svc.ExtractFromImages(context.Background(), uuid.New(),
		[]agent.ImageData{{MIMEType: "image/jpeg", Data: []byte{0xFF, 0xD8}}}, "")
	if err != nil {
		t.Fatalf("ExtractFromImages() error = %v, want graceful empty result", err)
	}

	if len(resp.Candidates) != 0 || resp.Extracted != 0 {
		t.Fatalf("resp = %+v, want no candidates", resp)
	}
	if resp.Message != "no valid measurements found" {
		t.Fatalf("message = %q, want %q", resp.Message, "no valid measurements found")
	}
	if len(repo.inserted) != 0 {
		t.Fatalf("persisted %d rows, want 0", len(repo.inserted))
	}
}

func TestExtractSurfacesDuplicateDetails(t *testing.T) {
	repo := &fakeRepo{}
	existingID := uuid.New()
	repo.stored = []repository.Measurement{{
		ID: existingID, MetricKey: "weight", Value: 82.5, Unit: "kg", MeasuredAt: time.Now(),
	}}
	extractor := &fakeExtractor{rows: []domain.Extracted{{Name: "weight", Value: 82.5, Unit: "kg"}}}
	svc, _ := testService(t, repo, extractor)

	resp, err := svc.ExtractFromImages(context.Background(), uuid.New(),
		[]agent.ImageData{{MIMEType: "image/jpeg", Data: []byte{0xFF, 0xD8}}}, "")
	if err != nil {
		t.Fatalf("ExtractFromImages() error = %v", err)
	}

	c := resp.Candidates[0]
	if c.Duplicate != "high" {
		t.Fatalf("duplicate band = %q, want high", c.Duplicate)
	}
	if c.DuplicateScore != 1.0 {
		t.Fatalf("duplicate score = %v, want 1.0", c.DuplicateScore)
	}
	if c.DuplicateValue == nil || *c.DuplicateValue != 82.5 {
		t.Fatalf("duplicate value = %v, want 82.5", c.DuplicateValue)
	}
	if c.DuplicateDisplayName != "Weight" {
		t.Fatalf("duplicate display name = %q, want Weight", c.DuplicateDisplayName)
	}
	if c.DuplicateOf != existingID.String() {
		t.Fatalf("duplicateOf = %q, want %q", c.DuplicateOf, existingID)
	}
}

func TestExtractRequiresImages(t *testing.T) {
	svc, _ := testService(t, &fakeRepo{}, &fakeExtractor{})
	_, err := svc.ExtractFromImages(context.Background(), uuid.New(), nil, "")
	if !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("error = %v, want bad request", err)
	}
}

func TestConfirmPersistsValidRowsAndRejectsDropped(t *testing.T) {
	repo := &fakeRepo{}
	svc, bus := testService(t, repo, nil)
	userID := uuid.New()

	resp, err := svc.Confirm(context.Background(), userID, transport.ConfirmRequest{
		Items: []transport.ConfirmItem{
			{Name: "weight", Value: 82.5, Unit: "kg"},
			{Name: "heart rate", Value: 400, Unit: "bpm"},
			{Name: "unknown_xyz", Value: 3, Unit: "u"},
		},
	})
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	if len(resp.Saved) != 2 {
		t.Fatalf("saved %d rows, want 2", len(resp.Saved))
	}
	if len(resp.Rejected) != 1 {
		t.Fatalf("rejected %d rows, want 1", len(resp.Rejected))
	}
	// Out-of-range heart rate is kept with its warning attached.
	var hr *transport.MeasurementResponse
	for i := range resp.Saved {
		if resp.Saved[i].MetricKey == "heart_rate" {
			hr = &resp.Saved[i]
		}
	}
	if hr == nil {
		t.Fatal("heart_rate row missing from saved batch")
	}
	if hr.Value != 400 {
		t.Fatalf("heart_rate value = %g, want 400 (never clamped)", hr.Value)
	}
	if len(hr.Warnings) == 0 {
		t.Fatal("expected out_of_range warning on heart_rate row")
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	ingested, ok := bus.published[0].(events.MeasurementsIngested)
	if !ok {
		t.Fatalf("published %T, want MeasurementsIngested", bus.published[0])
	}
	if ingested.ProcessedCount != 2 || ingested.ExtractedCount != 3 {
		t.Fatalf("event counts = %+v, want processed 2 of 3", ingested)
	}
}

func TestConfirmFlagsDuplicateAgainstStored(t *testing.T) {
	repo := &fakeRepo{}
	svc, _ := testService(t, repo, nil)
	userID := uuid.New()

	if _, err := svc.Confirm(context.Background(), userID, transport.ConfirmRequest{
		Items: []transport.ConfirmItem{{Name: "weight", Value: 82.5, Unit: "kg"}},
	}); err != nil {
		t.Fatalf("first Confirm() error = %v", err)
	}

	resp, err := svc.Confirm(context.Background(), userID, transport.ConfirmRequest{
		Items: []transport.ConfirmItem{{Name: "weight", Value: 82.5, Unit: "kg"}},
	})
	if err != nil {
		t.Fatalf("second Confirm() error = %v", err)
	}

	if resp.Duplicates != 1 {
		t.Fatalf("duplicates = %d, want 1", resp.Duplicates)
	}
	// Advisory only: the repeat row is still saved.
	if len(resp.Saved) != 1 {
		t.Fatalf("saved %d rows, want 1", len(resp.Saved))
	}
}

func TestConfirmStampsSourceAndConfidence(t *testing.T) {
	repo := &fakeRepo{}
	svc, _ := testService(t, repo, nil)
	notes := "fasting"

	resp, err := svc.Confirm(context.Background(), uuid.New(), transport.ConfirmRequest{
		Items: []transport.ConfirmItem{{Name: "weight", Value: 82.5, Unit: "kg", Notes: &notes}},
	})
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	p := repo.inserted[0]
	if p.Source != "ocr" {
		t.Fatalf("source = %q, want ocr", p.Source)
	}
	if p.Confidence == nil || *p.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0 for an exact match", p.Confidence)
	}
	if p.Notes == nil || *p.Notes != "fasting" {
		t.Fatalf("notes = %v, want fasting", p.Notes)
	}
	if resp.Saved[0].Confidence == nil || *resp.Saved[0].Confidence != 1.0 {
		t.Fatalf("response confidence = %v, want 1.0", resp.Saved[0].Confidence)
	}
}

func TestCreateRejectsUnmatchedMetric(t *testing.T) {
	svc, _ := testService(t, &fakeRepo{}, nil)

	_, err := svc.Create(context.Background(), uuid.New(), transport.CreateMeasurementRequest{
		Name: "shoe size", Value: 43, Unit: "eu",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
}
