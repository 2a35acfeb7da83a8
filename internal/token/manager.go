// Package token orchestrates the credential lifecycle: issuance, refresh,
// revocation and validation against platform gateways.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/adgate/adgate/internal/core"
	"github.com/adgate/adgate/internal/correlation"
	"github.com/adgate/adgate/internal/platform"
)

// Manager owns all credential mutations. Refreshes for one credential are
// collapsed into a single upstream call; every write uses optimistic
// versioning and is retried once on a lost race.
type Manager struct {
	creds      core.CredentialStore
	principals core.PrincipalStore
	gateways   *platform.Registry
	auditor    core.Auditor

	group   singleflight.Group
	now     core.Clock
	timeout time.Duration
}

type Option func(*Manager)

// WithClock overrides the wall clock (used by tests).
func WithClock(clock core.Clock) Option {
	return func(m *Manager) {
		m.now = clock
	}
}

// WithProviderTimeout bounds every outbound platform call.
func WithProviderTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

func NewManager(
	creds core.CredentialStore,
	principals core.PrincipalStore,
	gateways *platform.Registry,
	auditor core.Auditor,
	opts ...Option,
) *Manager {
	m := &Manager{
		creds:      creds,
		principals: principals,
		gateways:   gateways,
		auditor:    auditor,
		now:        time.Now,
		timeout:    15 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AuthURL returns the platform's authorization URL for the OAuth code flow.
func (m *Manager) AuthURL(platformTag, state string) (string, error) {
	gw, err := m.gateways.Get(platformTag)
	if err != nil {
		return "", err
	}
	return gw.AuthURL(state), nil
}

// Issue exchanges a one-time authorization code and persists the resulting
// credential as the principal's single active one. A prior active credential
// is superseded by the store, never deleted.
func (m *Manager) Issue(ctx context.Context, principalID, code string) (*core.Credential, error) {
	principal, err := m.principals.GetByID(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("looking up principal: %w", err)
	}

	gw, err := m.gateways.Get(principal.Platform)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	grant, err := gw.ExchangeCode(callCtx, code)
	if err != nil {
		m.audit(ctx, "credential.issue", principalID, principal.Platform, err, nil)
		return nil, err
	}

	now := m.now()
	cred := &core.Credential{
		ID:           xid.New().String(),
		PrincipalID:  principalID,
		Platform:     principal.Platform,
		Status:       core.StatusActive,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		Scope:        grant.Scope,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if grant.ExpiresIn > 0 {
		expiresAt := now.Add(grant.ExpiresIn)
		cred.ExpiresAt = &expiresAt
	}

	if err := m.creds.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("persisting credential: %w", err)
	}

	m.audit(ctx, "credential.issue", principalID, principal.Platform, nil, map[string]any{
		"credential_id": cred.ID,
	})

	log.Ctx(ctx).Info().
		Str("principal_id", principalID).
		Str("platform", principal.Platform).
		Str("credential_id", cred.ID).
		Msg("credential issued")

	return cred, nil
}

// GetValidToken returns the principal's current access token, refreshing it
// first when it has expired. Concurrent callers for the same expired
// credential share one upstream refresh.
func (m *Manager) GetValidToken(ctx context.Context, principalID string) (string, error) {
	cred, err := m.creds.GetActive(ctx, principalID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", fmt.Errorf("principal %s has no active credential: %w", principalID, core.ErrCredentialExpired)
		}
		return "", err
	}

	if !cred.ExpiredAt(m.now()) {
		m.touch(ctx, cred)
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		return "", fmt.Errorf("credential %s expired without refresh token: %w", cred.ID, core.ErrCredentialExpired)
	}

	// collapse concurrent refreshes: a second racing refresh would
	// invalidate the first one's tokens on many platforms
	v, err, _ := m.group.Do(cred.ID, func() (any, error) {
		refreshed, err := m.refresh(ctx, cred.ID)
		if err != nil {
			return nil, err
		}
		return refreshed.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Refresh exchanges the credential's refresh token for fresh tokens. On a
// definitive platform rejection the credential is marked expired and the
// caller must re-issue; ambiguous failures leave the status untouched.
func (m *Manager) Refresh(ctx context.Context, credentialID string) (*core.Credential, error) {
	v, err, _ := m.group.Do(credentialID, func() (any, error) {
		return m.refresh(ctx, credentialID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.Credential), nil
}

func (m *Manager) refresh(ctx context.Context, credentialID string) (*core.Credential, error) {
	cred, err := m.creds.GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	// a caller that waited on another refresh finds a fresh credential here
	if cred.Usable(m.now()) {
		return cred, nil
	}

	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("credential %s has no refresh token: %w", credentialID, core.ErrCredentialExpired)
	}

	gw, err := m.gateways.Get(cred.Platform)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	grant, err := gw.Refresh(callCtx, cred.RefreshToken)
	if err != nil {
		if core.IsRetryable(err) {
			// ambiguous: the platform may or may not have rotated the
			// tokens; do not downgrade the credential's status
			m.audit(ctx, "credential.refresh", cred.PrincipalID, cred.Platform, err, nil)
			return nil, err
		}

		// definitive rejection: the refresh token is dead
		if _, markErr := m.mutate(ctx, credentialID, func(c *core.Credential) {
			c.Status = core.StatusExpired
		}); markErr != nil {
			log.Ctx(ctx).Error().Err(markErr).
				Str("credential_id", credentialID).
				Msg("failed to mark credential expired after rejected refresh")
		}
		m.audit(ctx, "credential.refresh", cred.PrincipalID, cred.Platform, err, nil)
		return nil, fmt.Errorf("platform rejected refresh of credential %s: %w", credentialID, core.ErrCredentialExpired)
	}

	now := m.now()
	updated, err := m.mutate(ctx, credentialID, func(c *core.Credential) {
		c.AccessToken = grant.AccessToken
		if grant.RefreshToken != "" {
			c.RefreshToken = grant.RefreshToken
		}
		if grant.Scope != "" {
			c.Scope = grant.Scope
		}
		if grant.ExpiresIn > 0 {
			expiresAt := now.Add(grant.ExpiresIn)
			c.ExpiresAt = &expiresAt
		} else {
			c.ExpiresAt = nil
		}
		c.LastUsedAt = &now
		c.UsageCount++
	})
	if err != nil {
		return nil, fmt.Errorf("persisting refreshed credential: %w", err)
	}

	m.audit(ctx, "credential.refresh", cred.PrincipalID, cred.Platform, nil, map[string]any{
		"credential_id": credentialID,
		"version":       updated.Version,
	})

	log.Ctx(ctx).Debug().
		Str("credential_id", credentialID).
		Int64("version", updated.Version).
		Msg("credential refreshed")

	return updated, nil
}

// Revoke invalidates the credential on the platform. The local status only
// moves to revoked after the platform confirmed; a failed or ambiguous
// platform answer leaves the record untouched so we never lie about external
// state.
func (m *Manager) Revoke(ctx context.Context, credentialID string) (bool, error) {
	cred, err := m.creds.GetByID(ctx, credentialID)
	if err != nil {
		return false, err
	}
	if cred.Status == core.StatusRevoked {
		return true, nil
	}

	gw, err := m.gateways.Get(cred.Platform)
	if err != nil {
		return false, err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	confirmed, err := gw.Revoke(callCtx, cred.AccessToken)
	if err != nil {
		m.audit(ctx, "credential.revoke", cred.PrincipalID, cred.Platform, err, nil)
		return false, err
	}
	if !confirmed {
		return false, nil
	}

	if _, err := m.mutate(ctx, credentialID, func(c *core.Credential) {
		c.Status = core.StatusRevoked
	}); err != nil {
		return false, fmt.Errorf("persisting revocation: %w", err)
	}

	m.audit(ctx, "credential.revoke", cred.PrincipalID, cred.Platform, nil, map[string]any{
		"credential_id": credentialID,
	})

	return true, nil
}

// Validate lazily checks the credential against the platform. A negative
// answer marks the credential invalid; a positive one bumps last use.
func (m *Manager) Validate(ctx context.Context, credentialID string) (bool, error) {
	cred, err := m.creds.GetByID(ctx, credentialID)
	if err != nil {
		return false, err
	}

	gw, err := m.gateways.Get(cred.Platform)
	if err != nil {
		return false, err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	valid, err := gw.Validate(callCtx, cred.AccessToken)
	if err != nil {
		return false, err
	}

	now := m.now()
	if !valid {
		if _, err := m.mutate(ctx, credentialID, func(c *core.Credential) {
			c.Status = core.StatusInvalid
		}); err != nil {
			return false, fmt.Errorf("persisting invalid status: %w", err)
		}
		return false, nil
	}

	if _, err := m.mutate(ctx, credentialID, func(c *core.Credential) {
		c.LastUsedAt = &now
	}); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("credential_id", credentialID).
			Msg("failed to record credential use")
	}
	return true, nil
}

// IsAuthenticated reports whether the principal currently holds a usable
// (or refreshable) credential.
func (m *Manager) IsAuthenticated(ctx context.Context, principalID string) bool {
	_, err := m.GetValidToken(ctx, principalID)
	return err == nil
}

// ListCredentials returns a principal's full credential history, newest first.
func (m *Manager) ListCredentials(ctx context.Context, principalID string) ([]*core.Credential, error) {
	return m.creds.ListByPrincipal(ctx, principalID)
}

// mutate applies an optimistic write: read, apply, bump version, update.
// A write that lost against a concurrent mutation is retried exactly once on
// a fresh read.
func (m *Manager) mutate(ctx context.Context, credentialID string, apply func(*core.Credential)) (*core.Credential, error) {
	cred, err := m.creds.GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		apply(cred)
		cred.Version++
		cred.UpdatedAt = m.now()

		err = m.creds.Update(ctx, cred)
		if err == nil {
			return cred, nil
		}
		if !errors.Is(err, core.ErrVersionConflict) || attempt > 0 {
			return nil, err
		}

		cred, err = m.creds.GetByID(ctx, credentialID)
		if err != nil {
			return nil, err
		}
	}
}

// touch records a token hand-out. Losing the tiny version race here is fine;
// usage accounting is best effort.
func (m *Manager) touch(ctx context.Context, cred *core.Credential) {
	now := m.now()
	cred.LastUsedAt = &now
	cred.UsageCount++
	cred.Version++
	cred.UpdatedAt = now

	if err := m.creds.Update(ctx, cred); err != nil && !errors.Is(err, core.ErrVersionConflict) {
		log.Ctx(ctx).Warn().Err(err).
			Str("credential_id", cred.ID).
			Msg("failed to record credential use")
	}
}

func (m *Manager) audit(ctx context.Context, action, principalID, platformTag string, opErr error, metadata map[string]any) {
	entry := core.AuditEntry{
		ID:          correlationID(ctx),
		Time:        m.now(),
		Action:      action,
		PrincipalID: principalID,
		Platform:    platformTag,
		Granted:     opErr == nil,
		Metadata:    metadata,
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	if err := m.auditor.Log(entry); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to write audit log entry")
	}
}

func correlationID(ctx context.Context) string {
	return correlation.FromContext(ctx)
}
