package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adgate/adgate/internal/core"
)

func TestDelegationRepo_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewDelegationRepo(db)
	ctx := context.Background()

	link := &core.DelegationLink{
		AccountID: "acct-1",
		AgencyID:  "agency-1",
		Platform:  "meta",
		LinkedBy:  "user-1",
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.SaveLink(ctx, link))

	got, err := repo.GetLink(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "agency-1", got.AgencyID)
	assert.Equal(t, "user-1", got.LinkedBy)
	assert.WithinDuration(t, link.CreatedAt, got.CreatedAt, time.Second)

	// relinking replaces the account's agency
	link.AgencyID = "agency-2"
	require.NoError(t, repo.SaveLink(ctx, link))
	got, err = repo.GetLink(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "agency-2", got.AgencyID)

	require.NoError(t, repo.DeleteLink(ctx, "acct-1"))
	_, err = repo.GetLink(ctx, "acct-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDelegationRepo_GetLink_Missing(t *testing.T) {
	db := newTestDB(t)
	repo := NewDelegationRepo(db)

	_, err := repo.GetLink(context.Background(), "acct-unknown")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPrincipalRepo(t *testing.T) {
	db := newTestDB(t)
	repo := NewPrincipalRepo(db)
	ctx := context.Background()

	p := &core.Principal{
		ID:          "agency-1",
		Kind:        core.KindAgency,
		Platform:    "google",
		ExternalID:  "mcc-123",
		WorkspaceID: "ws-1",
	}
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.GetByID(ctx, "agency-1")
	require.NoError(t, err)
	assert.Equal(t, core.KindAgency, got.Kind)
	assert.Equal(t, "mcc-123", got.ExternalID)

	_, err = repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
