package api

import (
	"net/http"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/adgate/adgate/internal/api/presenter"
	"github.com/adgate/adgate/internal/audit"
	"github.com/adgate/adgate/internal/core"
)

// CredentialView is the external representation of a credential. Token
// material never leaves the service through listings; only a fingerprint
// does.
type CredentialView struct {
	ID          string                `json:"id"`
	PrincipalID string                `json:"principal_id"`
	Platform    string                `json:"platform"`
	Status      core.CredentialStatus `json:"status"`
	Fingerprint string                `json:"fingerprint"`
	ExpiresAt   *time.Time            `json:"expires_at,omitempty"`
	Scope       string                `json:"scope,omitempty"`
	LastUsedAt  *time.Time            `json:"last_used_at,omitempty"`
	UsageCount  int64                 `json:"usage_count"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

func credentialView(c *core.Credential) CredentialView {
	return CredentialView{
		ID:          c.ID,
		PrincipalID: c.PrincipalID,
		Platform:    c.Platform,
		Status:      c.Status,
		Fingerprint: audit.Fingerprint(c.AccessToken),
		ExpiresAt:   c.ExpiresAt,
		Scope:       c.Scope,
		LastUsedAt:  c.LastUsedAt,
		UsageCount:  c.UsageCount,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// handleAuthURL returns the platform's authorization URL to start the OAuth
// code flow for a principal.
func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request, _ Actor) {
	platformTag := r.PathValue("platform")
	state := r.URL.Query().Get("state")
	if state == "" {
		state = xid.New().String()
	}

	authURL, err := s.tokens.AuthURL(platformTag, state)
	if err != nil {
		presenter.Err(w, r, err, "building authorization url failed")
		return
	}

	presenter.JSON(w, r, map[string]string{
		"auth_url": authURL,
		"state":    state,
	}, http.StatusOK)
}

type RegisterPrincipalPayload struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Platform    string `json:"platform"`
	ExternalID  string `json:"external_id"`
	WorkspaceID string `json:"workspace_id"`
}

// handleRegisterPrincipal registers an account or agency principal in the
// authorized workspace.
func (s *Server) handleRegisterPrincipal(w http.ResponseWriter, r *http.Request, actor Actor) {
	logger := log.Ctx(r.Context())

	var payload RegisterPrincipalPayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode principal payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	kind := core.PrincipalKind(payload.Kind)
	if kind != core.KindAccount && kind != core.KindAgency {
		presenter.Error(w, r, "kind must be 'account' or 'agency'", http.StatusBadRequest)
		return
	}
	if payload.ExternalID == "" {
		presenter.Error(w, r, "external_id is required", http.StatusBadRequest)
		return
	}
	if _, err := s.platforms.Get(payload.Platform); err != nil {
		presenter.Err(w, r, err, "registering principal failed")
		return
	}

	principal := &core.Principal{
		ID:          payload.ID,
		Kind:        kind,
		Platform:    payload.Platform,
		ExternalID:  payload.ExternalID,
		WorkspaceID: actor.WorkspaceID,
	}
	if principal.ID == "" {
		principal.ID = xid.New().String()
	}

	if err := s.principals.Save(r.Context(), principal); err != nil {
		logger.Error().Err(err).Msg("failed to save principal")
		presenter.Err(w, r, err, "registering principal failed")
		return
	}

	logger.Info().
		Str("principal_id", principal.ID).
		Str("kind", string(kind)).
		Str("platform", principal.Platform).
		Msg("principal registered")

	presenter.JSON(w, r, principal, http.StatusCreated)
}

type ExchangePayload struct {
	PrincipalID string `json:"principal_id"`
	Code        string `json:"code"`
	WorkspaceID string `json:"workspace_id"`
}

// handleExchange exchanges an OAuth authorization code for a stored
// credential. Any previously active credential of the principal is
// superseded.
func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request, actor Actor) {
	logger := log.Ctx(r.Context())

	var payload ExchangePayload
	if err := DecodePayload(r, &payload, false); err != nil {
		logger.Warn().Err(err).Msg("failed to decode exchange payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.PrincipalID == "" || payload.Code == "" {
		presenter.Error(w, r, "principal_id and code are required", http.StatusBadRequest)
		return
	}

	if _, err := s.principalInWorkspace(r, payload.PrincipalID, actor.WorkspaceID); err != nil {
		presenter.Err(w, r, err, "exchanging code failed")
		return
	}

	cred, err := s.tokens.Issue(r.Context(), payload.PrincipalID, payload.Code)
	if err != nil {
		logger.Error().Err(err).Str("principal_id", payload.PrincipalID).Msg("code exchange failed")
		presenter.Err(w, r, err, "exchanging code failed")
		return
	}

	logger.Info().
		Str("principal_id", payload.PrincipalID).
		Str("credential_id", cred.ID).
		Msg("credential issued")

	presenter.JSON(w, r, credentialView(cred), http.StatusCreated)
}

// handleRefresh forces a refresh of a stored credential.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, actor Actor) {
	id := r.PathValue("id")
	if _, err := s.credentialInWorkspace(r, id, actor.WorkspaceID); err != nil {
		presenter.Err(w, r, err, "refreshing credential failed")
		return
	}

	cred, err := s.tokens.Refresh(r.Context(), id)
	if err != nil {
		presenter.Err(w, r, err, "refreshing credential failed")
		return
	}

	presenter.JSON(w, r, credentialView(cred), http.StatusOK)
}

// handleRevoke revokes a credential on the platform and marks it revoked
// locally once the platform confirmed.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request, actor Actor) {
	id := r.PathValue("id")
	if _, err := s.credentialInWorkspace(r, id, actor.WorkspaceID); err != nil {
		presenter.Err(w, r, err, "revoking credential failed")
		return
	}

	revoked, err := s.tokens.Revoke(r.Context(), id)
	if err != nil {
		presenter.Err(w, r, err, "revoking credential failed")
		return
	}

	log.Ctx(r.Context()).Info().
		Str("credential_id", id).
		Bool("revoked", revoked).
		Msg("credential revocation processed")

	presenter.JSON(w, r, map[string]bool{"revoked": revoked}, http.StatusOK)
}

// handleValidate checks the stored credential against the platform.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request, actor Actor) {
	id := r.PathValue("id")
	if _, err := s.credentialInWorkspace(r, id, actor.WorkspaceID); err != nil {
		presenter.Err(w, r, err, "validating credential failed")
		return
	}

	valid, err := s.tokens.Validate(r.Context(), id)
	if err != nil {
		presenter.Err(w, r, err, "validating credential failed")
		return
	}

	presenter.JSON(w, r, map[string]bool{"valid": valid}, http.StatusOK)
}

// handleResolvedToken returns the access token to use for platform calls as
// the given principal. For a delegated account this is the linked agency's
// token. This is the only endpoint that returns token material.
func (s *Server) handleResolvedToken(w http.ResponseWriter, r *http.Request, actor Actor) {
	principalID := r.PathValue("principal_id")
	if _, err := s.principalInWorkspace(r, principalID, actor.WorkspaceID); err != nil {
		presenter.Err(w, r, err, "resolving token failed")
		return
	}

	resolved, err := s.delegations.ResolveToken(r.Context(), principalID)
	if err != nil {
		presenter.Err(w, r, err, "resolving token failed")
		return
	}

	presenter.JSON(w, r, resolved, http.StatusOK)
}

// handleAuthenticated reports whether the principal currently holds a usable
// credential, without touching the platform.
func (s *Server) handleAuthenticated(w http.ResponseWriter, r *http.Request, actor Actor) {
	principalID := r.PathValue("principal_id")
	if _, err := s.principalInWorkspace(r, principalID, actor.WorkspaceID); err != nil {
		presenter.Err(w, r, err, "checking authentication failed")
		return
	}

	authenticated := s.tokens.IsAuthenticated(r.Context(), principalID)
	presenter.JSON(w, r, map[string]bool{"authenticated": authenticated}, http.StatusOK)
}

// handleListCredentials lists all credentials of a principal, newest first.
func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request, actor Actor) {
	principalID := r.PathValue("principal_id")
	if _, err := s.principalInWorkspace(r, principalID, actor.WorkspaceID); err != nil {
		presenter.Err(w, r, err, "listing credentials failed")
		return
	}

	creds, err := s.tokens.ListCredentials(r.Context(), principalID)
	if err != nil {
		presenter.Err(w, r, err, "listing credentials failed")
		return
	}

	views := make([]CredentialView, 0, len(creds))
	for _, c := range creds {
		views = append(views, credentialView(c))
	}
	presenter.JSON(w, r, views, http.StatusOK)
}
