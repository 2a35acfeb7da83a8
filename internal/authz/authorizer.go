// Package authz gates every operation behind workspace-scoped permissions.
// Decisions are deny-by-default: no assignment row means no access, and
// there is no implicit administrator bypass.
package authz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adgate/adgate/internal/core"
	"github.com/adgate/adgate/internal/correlation"
)

// Authorizer resolves the workspace in scope of a request and decides
// allow/deny against the permission store.
type Authorizer struct {
	perms   core.PermissionStore
	auditor core.Auditor
	now     core.Clock
}

func NewAuthorizer(perms core.PermissionStore, auditor core.Auditor) *Authorizer {
	return &Authorizer{
		perms:   perms,
		auditor: auditor,
		now:     time.Now,
	}
}

// Authorize runs the per-request decision for an already-resolved identity:
// resolve the workspace from the route's declared sources, then check
// membership of (resource, action) in the user's permission set. It returns
// the resolved workspace id on allow.
func (a *Authorizer) Authorize(ctx context.Context, r *http.Request, userID string, spec RouteSpec) (string, error) {
	if userID == "" {
		return "", core.ErrAuthenticationRequired
	}

	workspaceID, err := resolveWorkspace(r, spec.Workspace)
	if err != nil {
		a.auditDecision(ctx, userID, "", spec, err)
		return "", err
	}
	if workspaceID == "" {
		if spec.Bootstrap && selfProvisioning(r, userID) {
			a.auditDecision(ctx, userID, "", spec, nil)
			return "", nil
		}
		err := fmt.Errorf("no workspace id in request for %s:%s: %w",
			spec.Resource, spec.Action, core.ErrWorkspaceContextMissing)
		a.auditDecision(ctx, userID, "", spec, err)
		return "", err
	}

	allowed, err := a.UserHasPermission(ctx, userID, workspaceID, spec.Resource, spec.Action)
	if err != nil {
		return "", err
	}
	if !allowed {
		err := fmt.Errorf("user %s lacks %s:%s in workspace %s: %w",
			userID, spec.Resource, spec.Action, workspaceID, core.ErrPermissionDenied)
		a.auditDecision(ctx, userID, workspaceID, spec, err)
		return "", err
	}

	a.auditDecision(ctx, userID, workspaceID, spec, nil)
	return workspaceID, nil
}

// UserHasPermission reports membership of (resource, action) in the user's
// stored permission set. A missing assignment row is a plain deny.
func (a *Authorizer) UserHasPermission(ctx context.Context, userID, workspaceID, resource, action string) (bool, error) {
	assignment, err := a.perms.Get(ctx, userID, workspaceID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return assignment.Has(core.PermissionID(resource, action)), nil
}

// UserHasWorkspaceAccess reports whether the user holds any permission in
// the workspace.
func (a *Authorizer) UserHasWorkspaceAccess(ctx context.Context, userID, workspaceID string) (bool, error) {
	assignment, err := a.perms.Get(ctx, userID, workspaceID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return len(assignment.Permissions) > 0, nil
}

// selfProvisioning reports whether a bootstrap request provisions a resource
// for the acting identity itself. A body naming another owner is rejected.
func selfProvisioning(r *http.Request, userID string) bool {
	owner, err := bodyField(r, "owner_id")
	if err != nil {
		return false
	}
	return owner == "" || owner == userID
}

func (a *Authorizer) auditDecision(ctx context.Context, userID, workspaceID string, spec RouteSpec, decisionErr error) {
	entry := core.AuditEntry{
		Time:        a.now(),
		Action:      "authz.decision",
		ActorID:     userID,
		UserID:      userID,
		WorkspaceID: workspaceID,
		Permissions: []string{core.PermissionID(spec.Resource, spec.Action)},
		Granted:     decisionErr == nil,
	}
	entry.ID = correlation.FromContext(ctx)
	if decisionErr != nil {
		entry.Error = decisionErr.Error()
	}
	if err := a.auditor.Log(entry); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to write audit log entry")
	}
}
