package adapters

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	andomain "healthlens_backend/internal/analysis/domain"
	ansvc "healthlens_backend/internal/analysis/service"
	profsvc "healthlens_backend/internal/profile/service"
)

// ProfileSubjectReader adapts the profile service for the analysis preamble,
// satisfying service.ProfileSource. A user without a profile yields a zero
// Subject; the projector renders its fields as "not provided".
type ProfileSubjectReader struct {
	profiles *profsvc.Service
}

// NewProfileSubjectReader creates a new profile subject adapter.
func NewProfileSubjectReader(profiles *profsvc.Service) *ProfileSubjectReader {
	return &ProfileSubjectReader{profiles: profiles}
}

// Subject returns the demographic context for an analysis.
func (a *ProfileSubjectReader) Subject(ctx context.Context, userID uuid.UUID) (andomain.Subject, error) {
	profile, err := a.profiles.Lookup(ctx, userID)
	if err != nil {
		return andomain.Subject{}, fmt.Errorf("profile adapter: lookup: %w", err)
	}
	if profile == nil {
		return andomain.Subject{}, nil
	}

	return andomain.Subject{
		Age:         profile.Age,
		Sex:         profile.Sex,
		HeightCm:    profile.HeightCm,
		Conditions:  profile.Conditions,
		Medications: profile.Medications,
		Goals:       profile.Goals,
	}, nil
}

// Compile-time check that ProfileSubjectReader implements service.ProfileSource.
var _ ansvc.ProfileSource = (*ProfileSubjectReader)(nil)
