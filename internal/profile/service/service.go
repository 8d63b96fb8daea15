// Package service contains profile business logic.
package service

import (
	"context"

	"github.com/google/uuid"

	"healthlens_backend/internal/profile/repository"
	"healthlens_backend/internal/profile/transport"
	"healthlens_backend/platform/apperr"
)

// Service implements profile use cases.
type Service struct {
	repo repository.Repository
}

// New creates a new profile service.
func New(repo repository.Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a user's profile.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (transport.ProfileResponse, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return transport.ProfileResponse{}, err
	}
	return toResponse(p), nil
}

// Upsert creates or replaces a user's profile.
func (s *Service) Upsert(ctx context.Context, userID uuid.UUID, req transport.UpsertProfileRequest) (transport.ProfileResponse, error) {
	p, err := s.repo.Upsert(ctx, repository.UpsertParams{
		UserID:      userID,
		Age:         req.Age,
		Sex:         req.Sex,
		HeightCm:    req.HeightCm,
		Conditions:  req.Conditions,
		Medications: req.Medications,
		Goals:       req.Goals,
	})
	if err != nil {
		return transport.ProfileResponse{}, err
	}
	return toResponse(p), nil
}

// Lookup returns the profile as domain data for the analysis projector.
// A missing profile is not an error; projection falls back to placeholders.
func (s *Service) Lookup(ctx context.Context, userID uuid.UUID) (*repository.Profile, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func toResponse(p repository.Profile) transport.ProfileResponse {
	return transport.ProfileResponse{
		Age:         p.Age,
		Sex:         p.Sex,
		HeightCm:    p.HeightCm,
		Conditions:  p.Conditions,
		Medications: p.Medications,
		Goals:       p.Goals,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
