package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adgate/adgate/internal/core"
)

func seedPrincipal(t *testing.T, db *DB, id string) {
	t.Helper()
	repo := NewPrincipalRepo(db)
	require.NoError(t, repo.Save(context.Background(), &core.Principal{
		ID:          id,
		Kind:        core.KindAccount,
		Platform:    "meta",
		ExternalID:  "ext-" + id,
		WorkspaceID: "ws-1",
	}))
}

func testCredential(id, principalID string) *core.Credential {
	now := time.Now()
	expires := now.Add(time.Hour)
	return &core.Credential{
		ID:           id,
		PrincipalID:  principalID,
		Platform:     "meta",
		Status:       core.StatusActive,
		AccessToken:  "at-" + id,
		RefreshToken: "rt-" + id,
		ExpiresAt:    &expires,
		Scope:        "ads_management",
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCredentialRepo_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	seedPrincipal(t, db, "acct-1")
	cred := testCredential("c1", "acct-1")
	require.NoError(t, repo.Save(ctx, cred))

	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, cred.AccessToken, got.AccessToken)
	assert.Equal(t, cred.RefreshToken, got.RefreshToken)
	assert.Equal(t, core.StatusActive, got.Status)
	assert.Equal(t, int64(1), got.Version)
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, *cred.ExpiresAt, *got.ExpiresAt, time.Second)
	assert.Nil(t, got.LastUsedAt)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCredentialRepo_SaveSupersedesActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	seedPrincipal(t, db, "acct-1")
	require.NoError(t, repo.Save(ctx, testCredential("c1", "acct-1")))
	require.NoError(t, repo.Save(ctx, testCredential("c2", "acct-1")))

	active, err := repo.GetActive(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "c2", active.ID)

	old, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusExpired, old.Status)
	assert.Equal(t, int64(2), old.Version, "superseding bumps the version")
}

func TestCredentialRepo_GetActive_None(t *testing.T) {
	db := newTestDB(t)
	repo := NewCredentialRepo(db)

	_, err := repo.GetActive(context.Background(), "acct-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCredentialRepo_Update_OptimisticVersion(t *testing.T) {
	db := newTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	seedPrincipal(t, db, "acct-1")
	require.NoError(t, repo.Save(ctx, testCredential("c1", "acct-1")))

	cred, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)

	cred.AccessToken = "at-rotated"
	cred.Version++
	require.NoError(t, repo.Update(ctx, cred))

	// a second write from the same read loses the race
	stale := *cred
	stale.AccessToken = "at-stale"
	err = repo.Update(ctx, &stale)
	assert.ErrorIs(t, err, core.ErrVersionConflict)

	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "at-rotated", got.AccessToken)
	assert.Equal(t, int64(2), got.Version)
}

func TestCredentialRepo_Update_Missing(t *testing.T) {
	db := newTestDB(t)
	repo := NewCredentialRepo(db)

	cred := testCredential("ghost", "acct-1")
	cred.Version = 2
	err := repo.Update(context.Background(), cred)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCredentialRepo_ListByPrincipal(t *testing.T) {
	db := newTestDB(t)
	repo := NewCredentialRepo(db)
	ctx := context.Background()

	seedPrincipal(t, db, "acct-1")
	seedPrincipal(t, db, "acct-2")

	first := testCredential("c1", "acct-1")
	first.CreatedAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, testCredential("c2", "acct-1")))
	require.NoError(t, repo.Save(ctx, testCredential("c3", "acct-2")))

	creds, err := repo.ListByPrincipal(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "c2", creds[0].ID, "newest first")

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
