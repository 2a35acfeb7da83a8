package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adgate/adgate/internal/core"
)

func activeCredential(id, principalID string) *core.Credential {
	now := time.Now()
	return &core.Credential{
		ID:          id,
		PrincipalID: principalID,
		Platform:    "meta",
		Status:      core.StatusActive,
		AccessToken: "at-" + id,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestInMemoryCredentialStore_SaveSupersedes(t *testing.T) {
	s := NewInMemoryCredentialStore()
	ctx := context.Background()

	if err := s.Save(ctx, activeCredential("c1", "acct-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, activeCredential("c2", "acct-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	active, err := s.GetActive(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if active.ID != "c2" {
		t.Errorf("active = %s, want c2", active.ID)
	}

	old, err := s.GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if old.Status != core.StatusExpired {
		t.Errorf("superseded status = %q, want expired", old.Status)
	}
}

func TestInMemoryCredentialStore_SaveDuplicateID(t *testing.T) {
	s := NewInMemoryCredentialStore()
	ctx := context.Background()

	if err := s.Save(ctx, activeCredential("c1", "acct-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, activeCredential("c1", "acct-1")); err == nil {
		t.Error("saving a duplicate id must fail")
	}
}

func TestInMemoryCredentialStore_UpdateVersionConflict(t *testing.T) {
	s := NewInMemoryCredentialStore()
	ctx := context.Background()

	if err := s.Save(ctx, activeCredential("c1", "acct-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	first, _ := s.GetByID(ctx, "c1")
	second, _ := s.GetByID(ctx, "c1")

	first.AccessToken = "at-rotated"
	first.Version++
	if err := s.Update(ctx, first); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	second.AccessToken = "at-stale"
	second.Version++
	if err := s.Update(ctx, second); !errors.Is(err, core.ErrVersionConflict) {
		t.Errorf("stale Update() error = %v, want ErrVersionConflict", err)
	}

	got, _ := s.GetByID(ctx, "c1")
	if got.AccessToken != "at-rotated" {
		t.Errorf("token = %q, the losing write must not apply", got.AccessToken)
	}
}

func TestInMemoryCredentialStore_Isolation(t *testing.T) {
	s := NewInMemoryCredentialStore()
	ctx := context.Background()

	if err := s.Save(ctx, activeCredential("c1", "acct-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// mutating a returned credential must not write through
	got, _ := s.GetByID(ctx, "c1")
	got.AccessToken = "tampered"

	fresh, _ := s.GetByID(ctx, "c1")
	if fresh.AccessToken != "at-c1" {
		t.Errorf("token = %q, store handed out a shared pointer", fresh.AccessToken)
	}
}

func TestInMemoryPermissionStore(t *testing.T) {
	s := NewInMemoryPermissionStore()
	ctx := context.Background()

	if _, err := s.Assign(ctx, "user-1", "ws-1", "credential:read", "credential:read"); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	a, err := s.Get(ctx, "user-1", "ws-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(a.Permissions) != 1 {
		t.Errorf("permissions = %v, want deduplicated set", a.Permissions)
	}

	if err := s.Remove(ctx, "user-1", "ws-1", "credential:read"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := s.Get(ctx, "user-1", "ws-1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() after emptying error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryDelegationStore(t *testing.T) {
	s := NewInMemoryDelegationStore()
	ctx := context.Background()

	link := &core.DelegationLink{AccountID: "acct-1", AgencyID: "agency-1", Platform: "meta"}
	if err := s.SaveLink(ctx, link); err != nil {
		t.Fatalf("SaveLink() error = %v", err)
	}

	got, err := s.GetLink(ctx, "acct-1")
	if err != nil {
		t.Fatalf("GetLink() error = %v", err)
	}
	if got.AgencyID != "agency-1" {
		t.Errorf("agency = %q, want agency-1", got.AgencyID)
	}

	if err := s.DeleteLink(ctx, "acct-1"); err != nil {
		t.Fatalf("DeleteLink() error = %v", err)
	}
	if _, err := s.GetLink(ctx, "acct-1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetLink() after delete error = %v, want ErrNotFound", err)
	}
}
