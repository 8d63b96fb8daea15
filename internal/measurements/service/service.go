// Package service orchestrates measurement extraction and ingestion.
package service

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"healthlens_backend/internal/adapters/storage"
	"healthlens_backend/internal/events"
	"healthlens_backend/internal/measurements/agent"
	"healthlens_backend/internal/measurements/domain"
	"healthlens_backend/internal/measurements/repository"
	"healthlens_backend/internal/measurements/transport"
	"healthlens_backend/platform/apperr"
	"healthlens_backend/platform/config"
	"healthlens_backend/platform/logger"
)

// CatalogSource provides the current catalog snapshot for normalization and
// validation. Backed by the catalog module's TTL cache.
type CatalogSource interface {
	Catalog(ctx context.Context) (domain.Catalog, error)
}

// Extractor runs the vision model over report images.
type Extractor interface {
	Extract(ctx context.Context, req agent.ExtractionRequest) ([]domain.Extracted, error)
}

const (
	SourceOCR    = "ocr"
	SourceManual = "manual"
)

const msgNoValidMeasurements = "no valid measurements found"

// Service implements measurement use cases.
type Service struct {
	repo      repository.Repository
	pipeline  *domain.Pipeline
	catalog   CatalogSource
	extractor Extractor
	storage   storage.StorageService
	bucket    string
	bus       events.Bus
	cfg       config.PipelineConfig
	log       *logger.Logger
}

// New creates a measurements service. extractor and store may be nil when the
// corresponding backends are not configured.
func New(
	repo repository.Repository,
	pipeline *domain.Pipeline,
	catalog CatalogSource,
	extractor Extractor,
	store storage.StorageService,
	bucket string,
	bus events.Bus,
	cfg config.PipelineConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		pipeline:  pipeline,
		catalog:   catalog,
		extractor: extractor,
		storage:   store,
		bucket:    bucket,
		bus:       bus,
		cfg:       cfg,
		log:       log,
	}
}

// ExtractFromImages runs the vision model over uploaded report photos and
// returns a reviewable preview. Nothing is persisted here.
func (s *Service) ExtractFromImages(ctx context.Context, userID uuid.UUID, images []agent.ImageData, hint string) (transport.ExtractResponse, error) {
	if s.extractor == nil {
		return transport.ExtractResponse{}, apperr.New(apperr.KindUpstream, "extraction is not configured")
	}
	if len(images) == 0 {
		return transport.ExtractResponse{}, apperr.BadRequest("at least one image is required")
	}

	rows, err := s.extractor.Extract(ctx, agent.ExtractionRequest{
		UserID: userID,
		Images: images,
		Hint:   hint,
	})
	if err != nil {
		return transport.ExtractResponse{}, apperr.Wrap(apperr.KindUpstream, "extraction failed", err)
	}

	// Rows without a printed date inherit the photo's EXIF capture time.
	if fallback := firstCaptureTime(images); fallback != nil {
		for i := range rows {
			if rows[i].MeasuredAt == nil {
				rows[i].MeasuredAt = fallback
			}
		}
	}

	items, err := s.runPipeline(ctx, userID, rows)
	if err != nil {
		return transport.ExtractResponse{}, err
	}

	fileKeys := s.storeImages(ctx, userID, images)

	resp := buildExtractResponse(items)
	resp.FileKeys = fileKeys
	if resp.Extracted == 0 {
		resp.Message = msgNoValidMeasurements
	}
	return resp, nil
}

// Confirm persists a reviewed batch. The pipeline runs again so stale client
// state cannot bypass validation; dropped rows come back as rejected.
func (s *Service) Confirm(ctx context.Context, userID uuid.UUID, req transport.ConfirmRequest) (transport.ConfirmResponse, error) {
	batch := make([]domain.Extracted, 0, len(req.Items))
	fileKeys := make([]*string, 0, len(req.Items))
	for _, item := range req.Items {
		batch = append(batch, domain.Extracted{
			Name:       item.Name,
			Value:      item.Value,
			Unit:       item.Unit,
			MeasuredAt: item.MeasuredAt,
		})
		fileKeys = append(fileKeys, item.FileKey)
	}

	items, err := s.runPipeline(ctx, userID, batch)
	if err != nil {
		return transport.ConfirmResponse{}, err
	}

	now := time.Now().UTC()
	inserts := make([]repository.InsertParams, 0, len(items))
	insertWarnings := make([][]domain.Warning, 0, len(items))
	rejected := make([]transport.CandidateResponse, 0)
	duplicates, warnings := 0, 0
	for i := range items {
		it := &items[i]
		warnings += len(it.Warnings)
		if it.Duplicate != domain.DupNone {
			duplicates++
		}
		if it.Dropped {
			rejected = append(rejected, toCandidate(it))
			continue
		}

		measuredAt := now
		if it.Raw.MeasuredAt != nil {
			measuredAt = *it.Raw.MeasuredAt
		}
		confidence := it.MatchScore
		inserts = append(inserts, repository.InsertParams{
			UserID:     userID,
			MetricKey:  it.MetricKey,
			Value:      it.Raw.Value,
			Unit:       it.Raw.Unit,
			MeasuredAt: measuredAt,
			Source:     SourceOCR,
			FileKey:    fileKeys[i],
			Confidence: &confidence,
			Notes:      req.Items[i].Notes,
		})
		insertWarnings = append(insertWarnings, it.Warnings)
	}

	saved, err := s.repo.InsertBatch(ctx, inserts)
	if err != nil {
		return transport.ConfirmResponse{}, err
	}

	s.log.IngestionResult(userID.String(), len(req.Items), len(saved), duplicates, warnings)
	s.bus.Publish(ctx, events.MeasurementsIngested{
		BaseEvent:      events.NewBaseEvent(),
		UserID:         userID,
		ExtractedCount: len(req.Items),
		ProcessedCount: len(saved),
		DuplicateCount: duplicates,
		WarningCount:   warnings,
		Source:         SourceOCR,
	})

	resp := transport.ConfirmResponse{
		Saved:      make([]transport.MeasurementResponse, 0, len(saved)),
		Rejected:   rejected,
		Duplicates: duplicates,
		Warnings:   warnings,
	}
	for i, m := range saved {
		resp.Saved = append(resp.Saved, toMeasurementResponse(m, insertWarnings[i]))
	}
	return resp, nil
}

// Create adds one manual measurement through the same pipeline.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req transport.CreateMeasurementRequest) (transport.MeasurementResponse, error) {
	items, err := s.runPipeline(ctx, userID, []domain.Extracted{{
		Name:       req.Name,
		Value:      req.Value,
		Unit:       req.Unit,
		MeasuredAt: req.MeasuredAt,
	}})
	if err != nil {
		return transport.MeasurementResponse{}, err
	}

	it := &items[0]
	if it.Dropped {
		return transport.MeasurementResponse{}, apperr.Validation(firstWarningMessage(it)).WithCode(string(it.DropReason))
	}

	measuredAt := time.Now().UTC()
	if it.Raw.MeasuredAt != nil {
		measuredAt = *it.Raw.MeasuredAt
	}
	saved, err := s.repo.InsertBatch(ctx, []repository.InsertParams{{
		UserID:     userID,
		MetricKey:  it.MetricKey,
		Value:      it.Raw.Value,
		Unit:       it.Raw.Unit,
		MeasuredAt: measuredAt,
		Source:     SourceManual,
		Notes:      req.Notes,
	}})
	if err != nil {
		return transport.MeasurementResponse{}, err
	}

	s.bus.Publish(ctx, events.MeasurementsIngested{
		BaseEvent:      events.NewBaseEvent(),
		UserID:         userID,
		ExtractedCount: 1,
		ProcessedCount: 1,
		DuplicateCount: boolToInt(it.Duplicate != domain.DupNone),
		WarningCount:   len(it.Warnings),
		Source:         SourceManual,
	})
	return toMeasurementResponse(saved[0], it.Warnings), nil
}

// List returns the caller's measurement history.
func (s *Service) List(ctx context.Context, userID uuid.UUID, req transport.ListMeasurementsRequest) (transport.MeasurementListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	params := repository.ListParams{
		UserID:    userID,
		MetricKey: req.Metric,
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
	}
	if req.From != "" {
		ts, err := time.Parse(time.RFC3339, req.From)
		if err != nil {
			return transport.MeasurementListResponse{}, apperr.BadRequest("invalid from timestamp")
		}
		params.From = &ts
	}
	if req.To != "" {
		ts, err := time.Parse(time.RFC3339, req.To)
		if err != nil {
			return transport.MeasurementListResponse{}, apperr.BadRequest("invalid to timestamp")
		}
		params.To = &ts
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.MeasurementListResponse{}, err
	}

	resp := transport.MeasurementListResponse{
		Items:      make([]transport.MeasurementResponse, 0, len(items)),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}
	for _, m := range items {
		resp.Items = append(resp.Items, toMeasurementResponse(m, nil))
	}
	return resp, nil
}

// Get returns one measurement.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (transport.MeasurementResponse, error) {
	m, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return transport.MeasurementResponse{}, err
	}
	return toMeasurementResponse(m, nil), nil
}

// Update corrects a measurement. The corrected value is re-checked against
// the catalog range; out-of-range corrections are rejected outright since the
// user is typing the value deliberately.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, req transport.UpdateMeasurementRequest) (transport.MeasurementResponse, error) {
	if req.Value != nil && (math.IsNaN(*req.Value) || math.IsInf(*req.Value, 0)) {
		return transport.MeasurementResponse{}, apperr.Validation("value must be a finite number")
	}

	m, err := s.repo.Update(ctx, repository.UpdateParams{
		ID:         id,
		UserID:     userID,
		Value:      req.Value,
		Unit:       req.Unit,
		MeasuredAt: req.MeasuredAt,
		Notes:      req.Notes,
	})
	if err != nil {
		return transport.MeasurementResponse{}, err
	}
	return toMeasurementResponse(m, nil), nil
}

// Delete removes a measurement.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.Delete(ctx, userID, id)
}

// ReportImageURL returns a presigned download link for the report photo a
// measurement was extracted from.
func (s *Service) ReportImageURL(ctx context.Context, userID, id uuid.UUID) (transport.ReportImageResponse, error) {
	if s.storage == nil {
		return transport.ReportImageResponse{}, apperr.NotFound("report image storage is not configured")
	}
	m, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return transport.ReportImageResponse{}, err
	}
	if m.FileKey == nil {
		return transport.ReportImageResponse{}, apperr.NotFound("measurement has no report image")
	}

	presigned, err := s.storage.GenerateDownloadURL(ctx, s.bucket, *m.FileKey)
	if err != nil {
		return transport.ReportImageResponse{}, apperr.Wrap(apperr.KindUpstream, "failed to presign report image", err)
	}
	return transport.ReportImageResponse{
		FileKey:   presigned.FileKey,
		URL:       presigned.URL,
		ExpiresAt: presigned.ExpiresAt,
	}, nil
}

func (s *Service) runPipeline(ctx context.Context, userID uuid.UUID, batch []domain.Extracted) ([]domain.Item, error) {
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	// History is fetched per touched metric so one chatty metric cannot push
	// another metric's latest readings out of the comparison window.
	return s.pipeline.Process(batch, catalog, func(metricKeys []string) ([]domain.Stored, error) {
		recent, err := s.repo.ListRecentByMetrics(ctx, userID, metricKeys, s.cfg.GetRecentMeasurementLimit())
		if err != nil {
			return nil, err
		}
		existing := make([]domain.Stored, 0, len(recent))
		for _, m := range recent {
			existing = append(existing, domain.Stored{
				ID:         m.ID.String(),
				MetricKey:  m.MetricKey,
				Value:      m.Value,
				Unit:       m.Unit,
				MeasuredAt: m.MeasuredAt,
			})
		}
		return existing, nil
	})
}

func (s *Service) storeImages(ctx context.Context, userID uuid.UUID, images []agent.ImageData) []string {
	if s.storage == nil {
		return nil
	}

	keys := make([]string, 0, len(images))
	for _, img := range images {
		name := img.Filename
		if name == "" {
			name = "report.jpg"
		}
		key, err := s.storage.UploadFile(ctx, s.bucket, userID.String(), name, img.MIMEType,
			bytes.NewReader(img.Data), int64(len(img.Data)))
		if err != nil {
			// Losing the original photo is not worth failing the extraction.
			s.log.Warn("failed to store report image", "error", err)
			continue
		}
		keys = append(keys, key)
		s.bus.Publish(ctx, events.ReportImageUploaded{
			BaseEvent:   events.NewBaseEvent(),
			UserID:      userID,
			FileKey:     key,
			ContentType: img.MIMEType,
			SizeBytes:   int64(len(img.Data)),
		})
	}
	return keys
}

func firstCaptureTime(images []agent.ImageData) *time.Time {
	for _, img := range images {
		if ts := exifCaptureTime(img.Data); ts != nil {
			return ts
		}
	}
	return nil
}

func buildExtractResponse(items []domain.Item) transport.ExtractResponse {
	resp := transport.ExtractResponse{
		Candidates: make([]transport.CandidateResponse, 0, len(items)),
		Extracted:  len(items),
	}
	for i := range items {
		it := &items[i]
		resp.Candidates = append(resp.Candidates, toCandidate(it))
		resp.Warnings += len(it.Warnings)
		if it.Duplicate != domain.DupNone {
			resp.Duplicates++
		}
		if !it.Dropped {
			resp.Eligible++
		}
	}
	return resp
}

func toCandidate(it *domain.Item) transport.CandidateResponse {
	resp := transport.CandidateResponse{
		Name:        it.Raw.Name,
		MetricKey:   it.MetricKey,
		Match:       it.Match,
		MatchScore:  it.MatchScore,
		Value:       it.Raw.Value,
		Unit:        it.Raw.Unit,
		MeasuredAt:  it.Raw.MeasuredAt,
		Warnings:    it.Warnings,
		Duplicate:   string(it.Duplicate),
		DuplicateOf: it.DuplicateOf,
		Dropped:     it.Dropped,
	}
	if it.Duplicate != domain.DupNone {
		resp.DuplicateScore = it.DuplicateScore
		value := it.DuplicateValue
		resp.DuplicateValue = &value
		resp.DuplicateDisplayName = it.DuplicateDisplayName
	}
	return resp
}

func toMeasurementResponse(m repository.Measurement, warnings []domain.Warning) transport.MeasurementResponse {
	return transport.MeasurementResponse{
		ID:         m.ID,
		MetricKey:  m.MetricKey,
		Value:      m.Value,
		Unit:       m.Unit,
		MeasuredAt: m.MeasuredAt,
		Source:     m.Source,
		Confidence: m.Confidence,
		Notes:      m.Notes,
		Warnings:   warnings,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func firstWarningMessage(it *domain.Item) string {
	if len(it.Warnings) > 0 {
		return it.Warnings[0].Message
	}
	return fmt.Sprintf("%q could not be ingested", it.Raw.Name)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
