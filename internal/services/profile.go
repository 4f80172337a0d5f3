package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/types"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.Profile, error)
	List(ctx context.Context, offset, limit int) ([]types.Profile, int, error)
	Patch(ctx context.Context, id uuid.UUID, patch types.ProfilePatch) error
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
	SetRole(ctx context.Context, id uuid.UUID, role types.Role) error
	AddRankPoints(ctx context.Context, id uuid.UUID, points int) (int, error)
}

// ProfileService fetches and mutates member profiles.
type ProfileService struct {
	repo   ProfileRepository
	logger zerolog.Logger
}

func NewProfileService(repo ProfileRepository, logger zerolog.Logger) *ProfileService {
	return &ProfileService{repo: repo, logger: logger}
}

// Fetch looks up a profile and returns nil on any failure. Lookup failure is
// not fatal: immediately after signup the trigger that creates the profile
// row may not have committed yet, and callers must tolerate the gap.
func (s *ProfileService) Fetch(ctx context.Context, id uuid.UUID) *types.Profile {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Debug().Err(err).Stringer("user_id", id).Msg("profile fetch failed")
		return nil
	}
	return &profile
}

// Get looks up a profile, propagating the error.
func (s *ProfileService) Get(ctx context.Context, id uuid.UUID) (types.Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProfileService) List(ctx context.Context, offset, limit int) ([]types.Profile, int, error) {
	return s.repo.List(ctx, offset, limit)
}

// Update persists a partial update and then re-reads the full row. There is
// no client-side merge: server defaults and triggers stay authoritative.
func (s *ProfileService) Update(ctx context.Context, id uuid.UUID, patch types.ProfilePatch) (types.Profile, error) {
	if err := s.repo.Patch(ctx, id, patch); err != nil {
		return types.Profile{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// Verify marks a profile approved and returns the refreshed row.
func (s *ProfileService) Verify(ctx context.Context, id uuid.UUID) (types.Profile, error) {
	if err := s.repo.SetVerified(ctx, id, true); err != nil {
		return types.Profile{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// SetRole changes a profile's role and returns the refreshed row.
func (s *ProfileService) SetRole(ctx context.Context, id uuid.UUID, role types.Role) (types.Profile, error) {
	if err := s.repo.SetRole(ctx, id, role); err != nil {
		return types.Profile{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// AddRankPoints atomically increments a member's rank points and returns the
// new total.
func (s *ProfileService) AddRankPoints(ctx context.Context, id uuid.UUID, points int) (int, error) {
	return s.repo.AddRankPoints(ctx, id, points)
}
