package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamz-workspace/apiserver/internal/store"
	"github.com/teamz-workspace/apiserver/types"
)

func TestProfileFetchReturnsNilOnMiss(t *testing.T) {
	repo := newFakeProfiles()
	svc := NewProfileService(repo, zerolog.Nop())

	assert.Nil(t, svc.Fetch(context.Background(), uuid.New()))
}

func TestProfileFetchReturnsNilOnRepositoryError(t *testing.T) {
	repo := newFakeProfiles()
	repo.err = context.DeadlineExceeded
	svc := NewProfileService(repo, zerolog.Nop())

	assert.Nil(t, svc.Fetch(context.Background(), uuid.New()))
}

func TestProfileUpdateReturnsServerRow(t *testing.T) {
	repo := newFakeProfiles()
	svc := NewProfileService(repo, zerolog.Nop())

	id := uuid.New()
	repo.put(types.Profile{
		ID:         id,
		FullName:   "Before",
		CubizID:    "CBZ-a1b2c3d4",
		Role:       types.RoleEmployee,
		RankPoints: 40,
	})

	name := "After"
	dept := "Design"
	updated, err := svc.Update(context.Background(), id, types.ProfilePatch{
		FullName:   &name,
		Department: &dept,
	})
	require.NoError(t, err)

	// The returned row is the re-read server state, not a client merge:
	// fields the patch never mentions keep their stored values.
	assert.Equal(t, "After", updated.FullName)
	assert.Equal(t, "Design", updated.Department)
	assert.Equal(t, "CBZ-a1b2c3d4", updated.CubizID)
	assert.Equal(t, 40, updated.RankPoints)
}

func TestProfileUpdateMissingRow(t *testing.T) {
	repo := newFakeProfiles()
	svc := NewProfileService(repo, zerolog.Nop())

	name := "Ghost"
	_, err := svc.Update(context.Background(), uuid.New(), types.ProfilePatch{FullName: &name})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProfileVerifyAndRole(t *testing.T) {
	repo := newFakeProfiles()
	svc := NewProfileService(repo, zerolog.Nop())

	id := uuid.New()
	repo.put(types.Profile{ID: id, Role: types.RoleEmployee})

	verified, err := svc.Verify(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	promoted, err := svc.SetRole(context.Background(), id, types.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, types.RoleManager, promoted.Role)
}

func TestProfileAddRankPoints(t *testing.T) {
	repo := newFakeProfiles()
	svc := NewProfileService(repo, zerolog.Nop())

	id := uuid.New()
	repo.put(types.Profile{ID: id, Role: types.RoleEmployee, RankPoints: 5})

	total, err := svc.AddRankPoints(context.Background(), id, 15)
	require.NoError(t, err)
	assert.Equal(t, 20, total)
}
