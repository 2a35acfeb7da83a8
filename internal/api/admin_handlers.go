package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/adgate/adgate/internal/api/presenter"
	"github.com/adgate/adgate/internal/core"
)

// queryableAuditor is implemented by audit backends that support reads (the
// in-memory auditor). File-backed audit logs are consumed out of band.
type queryableAuditor interface {
	GetRecent(limit int) ([]core.AuditEntry, error)
	Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error)
}

// handleAdminAudits retrieves audit log entries, optionally filtered.
func (s *Server) handleAdminAudits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	auditor, ok := s.auditor.(queryableAuditor)
	if !ok {
		presenter.Error(w, r, "audit backend does not support queries", http.StatusNotImplemented)
		return
	}

	q := r.URL.Query()
	limitStr := q.Get("limit")

	filterAction := q.Get("action")
	filterUserID := q.Get("user_id")
	filterWorkspaceID := q.Get("workspace_id")
	filterPrincipalID := q.Get("principal_id")

	limit := 50
	if limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v <= 0 {
			logger.Warn().Err(err).Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	var entries []core.AuditEntry
	var err error

	if filterAction != "" || filterUserID != "" || filterWorkspaceID != "" || filterPrincipalID != "" {
		entries, err = auditor.Find(func(entry core.AuditEntry) bool {
			if filterAction != "" && entry.Action != filterAction {
				return false
			}
			if filterUserID != "" && entry.UserID != filterUserID {
				return false
			}
			if filterWorkspaceID != "" && entry.WorkspaceID != filterWorkspaceID {
				return false
			}
			if filterPrincipalID != "" && entry.PrincipalID != filterPrincipalID {
				return false
			}
			return true
		}, limit)
	} else {
		entries, err = auditor.GetRecent(limit)
	}

	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve audit logs")
		presenter.Error(w, r, "failed to retrieve audit logs", http.StatusInternalServerError)
		return
	}

	presenter.JSON(w, r, entries, http.StatusOK)
}

// handleAdminCredentials lists all stored credentials across workspaces,
// token material redacted to fingerprints.
func (s *Server) handleAdminCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	creds, err := s.creds.ListAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve credentials")
		presenter.Error(w, r, "failed to retrieve credentials", http.StatusInternalServerError)
		return
	}

	views := make([]CredentialView, 0, len(creds))
	for _, c := range creds {
		views = append(views, credentialView(c))
	}
	presenter.JSON(w, r, views, http.StatusOK)
}
