package api

import (
	"net/http"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/adgate/adgate/internal/api/presenter"
	"github.com/adgate/adgate/internal/authz"
)

// ownerPermissions is granted to the creator of a fresh workspace.
var ownerPermissions = []string{
	"workspace:create",
	"workspace:read",
	"credential:connect",
	"credential:manage",
	"credential:use",
	"credential:read",
	"delegation:link",
	"delegation:unlink",
	"permission:assign",
	"permission:read",
}

type CreateWorkspacePayload struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
}

// handleCreateWorkspace provisions a workspace and grants the creator the
// owner permission set. This is the bootstrap entry point: a fresh identity
// with no permission rows anywhere may create its own first workspace.
func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request, actor Actor) {
	logger := log.Ctx(r.Context())

	var payload CreateWorkspacePayload
	if err := DecodePayload(r, &payload, true /* allow empty */); err != nil {
		logger.Warn().Err(err).Msg("failed to decode workspace payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	workspaceID := payload.ID
	if workspaceID == "" {
		workspaceID = xid.New().String()
	}

	assignment, err := s.perms.Assign(r.Context(), actor.UserID, workspaceID, ownerPermissions, actor.UserID)
	if err != nil {
		logger.Error().Err(err).Str("workspace_id", workspaceID).Msg("workspace bootstrap failed")
		presenter.Err(w, r, err, "creating workspace failed")
		return
	}

	logger.Info().
		Str("workspace_id", workspaceID).
		Str("owner", actor.UserID).
		Msg("workspace created")

	presenter.JSON(w, r, assignment, http.StatusCreated)
}

type AssignPayload struct {
	UserID      string   `json:"user_id"`
	WorkspaceID string   `json:"workspace_id"`
	Permissions []string `json:"permissions"`
}

// handleAssign grants permissions to a user in a workspace. The actor check
// happens in the permission service.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request, actor Actor) {
	logger := log.Ctx(r.Context())

	var payload AssignPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode assign payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.UserID == "" || payload.WorkspaceID == "" {
		presenter.Error(w, r, "user_id and workspace_id are required", http.StatusBadRequest)
		return
	}

	assignment, err := s.perms.Assign(r.Context(), payload.UserID, payload.WorkspaceID, payload.Permissions, actor.UserID)
	if err != nil {
		presenter.Err(w, r, err, "assigning permissions failed")
		return
	}

	presenter.JSON(w, r, assignment, http.StatusOK)
}

// handleRemove revokes permissions from a user in a workspace. An empty
// permission list removes the whole assignment.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request, actor Actor) {
	logger := log.Ctx(r.Context())

	var payload AssignPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode remove payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.UserID == "" || payload.WorkspaceID == "" {
		presenter.Error(w, r, "user_id and workspace_id are required", http.StatusBadRequest)
		return
	}

	var err error
	if len(payload.Permissions) == 0 {
		err = s.perms.RemoveAll(r.Context(), payload.UserID, payload.WorkspaceID, actor.UserID)
	} else {
		err = s.perms.Remove(r.Context(), payload.UserID, payload.WorkspaceID, payload.Permissions, actor.UserID)
	}
	if err != nil {
		presenter.Err(w, r, err, "removing permissions failed")
		return
	}

	presenter.JSON(w, r, map[string]string{"status": "ok"}, http.StatusOK)
}

type BulkAssignPayload struct {
	WorkspaceID string `json:"workspace_id"`
	Items       []struct {
		UserID      string   `json:"user_id"`
		Permissions []string `json:"permissions"`
	} `json:"items"`
}

// handleBulkAssign grants permissions to many users in one request. The
// batch never fails as a whole; each user carries its own outcome.
func (s *Server) handleBulkAssign(w http.ResponseWriter, r *http.Request, actor Actor) {
	logger := log.Ctx(r.Context())

	var payload BulkAssignPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode bulk assign payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.WorkspaceID == "" || len(payload.Items) == 0 {
		presenter.Error(w, r, "workspace_id and items are required", http.StatusBadRequest)
		return
	}

	items := make([]authz.BulkItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, authz.BulkItem{UserID: item.UserID, Permissions: item.Permissions})
	}

	results, err := s.perms.BulkAssign(r.Context(), payload.WorkspaceID, items, actor.UserID)
	if err != nil {
		presenter.Err(w, r, err, "bulk assigning permissions failed")
		return
	}

	presenter.JSON(w, r, results, http.StatusOK)
}

// handleGetAssignment returns a user's permission assignment in a workspace.
// A user without an assignment yields an empty permission list.
func (s *Server) handleGetAssignment(w http.ResponseWriter, r *http.Request, _ Actor) {
	userID := r.PathValue("user_id")
	workspaceID := r.PathValue("workspace_id")

	assignment, err := s.perms.Get(r.Context(), userID, workspaceID)
	if err != nil {
		presenter.Err(w, r, err, "fetching assignment failed")
		return
	}

	presenter.JSON(w, r, assignment, http.StatusOK)
}

// handleListAssignments lists every permission assignment in a workspace.
func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request, _ Actor) {
	workspaceID := r.PathValue("workspace_id")

	assignments, err := s.perms.ListWorkspace(r.Context(), workspaceID)
	if err != nil {
		presenter.Err(w, r, err, "listing assignments failed")
		return
	}

	presenter.JSON(w, r, assignments, http.StatusOK)
}
