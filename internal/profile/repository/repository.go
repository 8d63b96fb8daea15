// Package repository persists user health profiles.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"healthlens_backend/platform/apperr"
)

// Profile holds the demographic context that frames an analysis. Every field
// except the user reference is optional.
type Profile struct {
	UserID      uuid.UUID `db:"user_id"`
	Age         *int      `db:"age"`
	Sex         *string   `db:"sex"`
	HeightCm    *float64  `db:"height_cm"`
	Conditions  *string   `db:"conditions"`
	Medications *string   `db:"medications"`
	Goals       *string   `db:"goals"`
	CreatedAt   string    `db:"created_at"`
	UpdatedAt   string    `db:"updated_at"`
}

// UpsertParams contains data for creating or replacing a profile.
type UpsertParams struct {
	UserID      uuid.UUID
	Age         *int
	Sex         *string
	HeightCm    *float64
	Conditions  *string
	Medications *string
	Goals       *string
}

// Repository defines profile storage operations.
type Repository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (Profile, error)
	Upsert(ctx context.Context, params UpsertParams) (Profile, error)
}

const profileNotFoundMessage = "profile not found"

// Repo implements Repository on Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new profile repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

const profileColumns = `user_id, age, sex, height_cm, conditions, medications, goals, created_at, updated_at`

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	var createdAt, updatedAt time.Time
	if err := row.Scan(
		&p.UserID, &p.Age, &p.Sex, &p.HeightCm, &p.Conditions, &p.Medications, &p.Goals,
		&createdAt, &updatedAt,
	); err != nil {
		return Profile{}, err
	}
	p.CreatedAt = createdAt.Format(time.RFC3339)
	p.UpdatedAt = updatedAt.Format(time.RFC3339)
	return p, nil
}

// GetByUserID retrieves a user's profile.
func (r *Repo) GetByUserID(ctx context.Context, userID uuid.UUID) (Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM user_profiles WHERE user_id = $1`, profileColumns)

	p, err := scanProfile(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, apperr.NotFound(profileNotFoundMessage)
		}
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Upsert creates or fully replaces a user's profile.
func (r *Repo) Upsert(ctx context.Context, params UpsertParams) (Profile, error) {
	query := fmt.Sprintf(`
		INSERT INTO user_profiles (user_id, age, sex, height_cm, conditions, medications, goals)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			age = EXCLUDED.age,
			sex = EXCLUDED.sex,
			height_cm = EXCLUDED.height_cm,
			conditions = EXCLUDED.conditions,
			medications = EXCLUDED.medications,
			goals = EXCLUDED.goals,
			updated_at = now()
		RETURNING %s`, profileColumns)

	p, err := scanProfile(r.pool.QueryRow(ctx, query,
		params.UserID, params.Age, params.Sex, params.HeightCm,
		params.Conditions, params.Medications, params.Goals,
	))
	if err != nil {
		return Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return p, nil
}
