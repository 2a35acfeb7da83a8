package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/adgate/adgate/internal/core"
	"github.com/adgate/adgate/internal/correlation"
)

// bulkAssignConcurrency bounds parallel writes during a bulk assignment so a
// large batch cannot overwhelm the store.
const bulkAssignConcurrency = 4

// Service performs permission mutations on behalf of an acting user.
type Service struct {
	perms   core.PermissionStore
	auditor core.Auditor
	now     core.Clock
}

func NewService(perms core.PermissionStore, auditor core.Auditor) *Service {
	return &Service{
		perms:   perms,
		auditor: auditor,
		now:     time.Now,
	}
}

// Assign grants permission identifiers to a user in a workspace. The acting
// user needs "permission:assign" there, except in a fresh workspace where
// the first grant must be a self-grant (the workspace-creation bootstrap).
func (s *Service) Assign(ctx context.Context, userID, workspaceID string, permissions []string, actingUserID string) (*core.PermissionAssignment, error) {
	if len(permissions) == 0 {
		return nil, fmt.Errorf("no permission identifiers given")
	}
	for _, p := range permissions {
		if _, _, err := core.ParsePermissionID(p); err != nil {
			return nil, err
		}
	}

	if err := s.checkActor(ctx, actingUserID, userID, workspaceID); err != nil {
		s.auditAssign(ctx, "permission.assign", actingUserID, userID, workspaceID, permissions, err)
		return nil, err
	}

	assignment, err := s.perms.Assign(ctx, userID, workspaceID, permissions...)
	if err != nil {
		return nil, err
	}

	s.auditAssign(ctx, "permission.assign", actingUserID, userID, workspaceID, permissions, nil)

	log.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("workspace_id", workspaceID).
		Strs("permissions", permissions).
		Msg("permissions assigned")

	return assignment, nil
}

// Remove revokes permission identifiers from a user in a workspace.
func (s *Service) Remove(ctx context.Context, userID, workspaceID string, permissions []string, actingUserID string) error {
	if err := s.checkActor(ctx, actingUserID, userID, workspaceID); err != nil {
		s.auditAssign(ctx, "permission.remove", actingUserID, userID, workspaceID, permissions, err)
		return err
	}

	if err := s.perms.Remove(ctx, userID, workspaceID, permissions...); err != nil {
		return err
	}
	s.auditAssign(ctx, "permission.remove", actingUserID, userID, workspaceID, permissions, nil)
	return nil
}

// RemoveAll revokes a user's entire permission set in a workspace.
func (s *Service) RemoveAll(ctx context.Context, userID, workspaceID, actingUserID string) error {
	if err := s.checkActor(ctx, actingUserID, userID, workspaceID); err != nil {
		s.auditAssign(ctx, "permission.remove_all", actingUserID, userID, workspaceID, nil, err)
		return err
	}

	if err := s.perms.RemoveAll(ctx, userID, workspaceID); err != nil {
		return err
	}
	s.auditAssign(ctx, "permission.remove_all", actingUserID, userID, workspaceID, nil, nil)
	return nil
}

// Get returns a user's permission set in a workspace. A missing row yields
// an empty assignment, not an error.
func (s *Service) Get(ctx context.Context, userID, workspaceID string) (*core.PermissionAssignment, error) {
	assignment, err := s.perms.Get(ctx, userID, workspaceID)
	if errors.Is(err, core.ErrNotFound) {
		return &core.PermissionAssignment{UserID: userID, WorkspaceID: workspaceID}, nil
	}
	return assignment, err
}

// ListWorkspace returns every assignment row of a workspace.
func (s *Service) ListWorkspace(ctx context.Context, workspaceID string) ([]*core.PermissionAssignment, error) {
	return s.perms.ListByWorkspace(ctx, workspaceID)
}

// BulkItem is one user's grant in a bulk assignment.
type BulkItem struct {
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
}

// BulkResult reports one user's outcome of a bulk assignment.
type BulkResult struct {
	UserID string `json:"user_id"`
	Error  string `json:"error,omitempty"`
}

// BulkAssign applies assignments for multiple users in one workspace. Each
// user's upsert is independent: one failure does not roll back or block the
// others. Writes run with bounded concurrency.
func (s *Service) BulkAssign(ctx context.Context, workspaceID string, items []BulkItem, actingUserID string) ([]BulkResult, error) {
	if err := s.checkActor(ctx, actingUserID, "", workspaceID); err != nil {
		return nil, err
	}

	results := make([]BulkResult, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkAssignConcurrency)
	for i, item := range items {
		g.Go(func() error {
			results[i] = BulkResult{UserID: item.UserID}
			if err := assignOne(ctx, s.perms, item, workspaceID); err != nil {
				results[i].Error = err.Error()
			}
			// per-user outcome only; never fail the batch
			return nil
		})
	}
	_ = g.Wait()

	s.auditAssign(ctx, "permission.bulk_assign", actingUserID, "", workspaceID, nil, nil)
	return results, nil
}

func assignOne(ctx context.Context, perms core.PermissionStore, item BulkItem, workspaceID string) error {
	if len(item.Permissions) == 0 {
		return fmt.Errorf("no permission identifiers given")
	}
	for _, p := range item.Permissions {
		if _, _, err := core.ParsePermissionID(p); err != nil {
			return err
		}
	}
	_, err := perms.Assign(ctx, item.UserID, workspaceID, item.Permissions...)
	return err
}

// checkActor enforces that the acting user may manage permissions in the
// workspace. An empty workspace (no assignment rows yet) accepts a
// self-grant so a new workspace's creator can provision themselves.
func (s *Service) checkActor(ctx context.Context, actingUserID, targetUserID, workspaceID string) error {
	if actingUserID == "" {
		return core.ErrAuthenticationRequired
	}

	assignment, err := s.perms.Get(ctx, actingUserID, workspaceID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	if err == nil && assignment.Has(core.PermissionID("permission", "assign")) {
		return nil
	}

	existing, err := s.perms.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if len(existing) == 0 && targetUserID == actingUserID {
		return nil
	}

	return fmt.Errorf("user %s may not manage permissions in workspace %s: %w",
		actingUserID, workspaceID, core.ErrPermissionDenied)
}

func (s *Service) auditAssign(ctx context.Context, action, actorID, userID, workspaceID string, permissions []string, opErr error) {
	entry := core.AuditEntry{
		Time:        s.now(),
		Action:      action,
		ActorID:     actorID,
		UserID:      userID,
		WorkspaceID: workspaceID,
		Permissions: permissions,
		Granted:     opErr == nil,
	}
	entry.ID = correlation.FromContext(ctx)
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	if err := s.auditor.Log(entry); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to write audit log entry")
	}
}
