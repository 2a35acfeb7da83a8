package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/adgate/adgate/internal/api/presenter"
)

type LinkPayload struct {
	AccountID   string `json:"account_id"`
	AgencyID    string `json:"agency_id"`
	WorkspaceID string `json:"workspace_id"`
}

// handleLink links an agency to a managed account after the agency's access
// to the account has been verified on the platform.
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request, actor Actor) {
	logger := log.Ctx(r.Context())

	var payload LinkPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode link payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.AccountID == "" || payload.AgencyID == "" {
		presenter.Error(w, r, "account_id and agency_id are required", http.StatusBadRequest)
		return
	}

	// both principals must live in the authorized workspace
	if _, err := s.principalInWorkspace(r, payload.AccountID, actor.WorkspaceID); err != nil {
		presenter.Err(w, r, err, "linking delegation failed")
		return
	}
	if _, err := s.principalInWorkspace(r, payload.AgencyID, actor.WorkspaceID); err != nil {
		presenter.Err(w, r, err, "linking delegation failed")
		return
	}

	link, err := s.delegations.Link(r.Context(), payload.AccountID, payload.AgencyID, actor.UserID)
	if err != nil {
		logger.Warn().Err(err).
			Str("account_id", payload.AccountID).
			Str("agency_id", payload.AgencyID).
			Msg("delegation link failed")
		presenter.Err(w, r, err, "linking delegation failed")
		return
	}

	logger.Info().
		Str("account_id", link.AccountID).
		Str("agency_id", link.AgencyID).
		Msg("delegation linked")

	presenter.JSON(w, r, link, http.StatusCreated)
}

// handleUnlink removes an agency link; the account falls back to its own
// credential.
func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request, actor Actor) {
	accountID := r.PathValue("account_id")
	if _, err := s.principalInWorkspace(r, accountID, actor.WorkspaceID); err != nil {
		presenter.Err(w, r, err, "unlinking delegation failed")
		return
	}

	if err := s.delegations.Unlink(r.Context(), accountID, actor.UserID); err != nil {
		presenter.Err(w, r, err, "unlinking delegation failed")
		return
	}

	presenter.JSON(w, r, map[string]string{"status": "ok"}, http.StatusOK)
}
