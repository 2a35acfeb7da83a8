package core

import (
	"fmt"
	"strings"
	"time"
)

// PrincipalKind distinguishes the two owners a credential can belong to.
type PrincipalKind string

const (
	// KindAccount is a managed advertising account on an external platform.
	KindAccount PrincipalKind = "account"

	// KindAgency is an agency that can act on behalf of managed accounts.
	KindAgency PrincipalKind = "agency"
)

// Principal is an Account or an Agency that can hold a Credential.
type Principal struct {
	// ID is the internal identifier of the principal.
	ID string `json:"id"`

	// Kind is either "account" or "agency".
	Kind PrincipalKind `json:"kind"`

	// Platform is the advertising platform this principal targets (as used in config).
	Platform string `json:"platform"`

	// ExternalID is the identifier of the principal's resource on the external
	// platform (e.g. the ad account id). Delegation verification checks access
	// against this, never against the internal ID.
	ExternalID string `json:"external_id"`

	// WorkspaceID is the workspace that owns this principal.
	WorkspaceID string `json:"workspace_id"`
}

// CredentialStatus is the lifecycle state of a stored credential.
type CredentialStatus string

const (
	StatusActive  CredentialStatus = "active"
	StatusExpired CredentialStatus = "expired"
	StatusRevoked CredentialStatus = "revoked"
	StatusInvalid CredentialStatus = "invalid"
	StatusPending CredentialStatus = "pending"
)

// Credential is a stored access/refresh token pair, scoped to exactly one
// principal and platform. Credentials are never hard-deleted: a superseded or
// revoked credential stays in the store as an audit trail.
type Credential struct {
	// ID is the unique identifier of this credential record.
	ID string `json:"id"`

	// PrincipalID is the owner (account or agency) of this credential.
	PrincipalID string `json:"principal_id"`

	// Platform is the advertising platform the tokens are valid for.
	Platform string `json:"platform"`

	// Status is the lifecycle state. At most one credential per principal
	// is "active" at any time.
	Status CredentialStatus `json:"status"`

	// AccessToken is the current bearer token.
	AccessToken string `json:"access_token"`

	// RefreshToken may be empty if the platform did not grant one.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the wall-clock expiry of AccessToken.
	// A nil value means the token does not expire.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Scope is the granted scope string as returned by the platform.
	Scope string `json:"scope,omitempty"`

	// LastUsedAt is the last time the token was handed out or validated.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	// UsageCount counts how often the token was handed out.
	UsageCount int64 `json:"usage_count"`

	// Version is bumped on every mutation and used for optimistic
	// concurrency on store writes.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExpiredAt reports whether the credential's access token is unusable at the
// given instant. A credential without an expiry never expires.
func (c *Credential) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}

// Usable reports whether the credential can currently be handed out.
func (c *Credential) Usable(now time.Time) bool {
	return c.Status == StatusActive && !c.ExpiredAt(now)
}

// DelegationLink records that an agency's credential is used for every
// platform call made on behalf of a managed account. A link only exists after
// the agency's access to the account's external resource has been verified on
// the platform.
type DelegationLink struct {
	// AccountID is the managed account principal.
	AccountID string `json:"account_id"`

	// AgencyID is the agency principal whose credential is substituted.
	AgencyID string `json:"agency_id"`

	// Platform both principals target. Links never cross platforms.
	Platform string `json:"platform"`

	// LinkedBy is the user who requested the link.
	LinkedBy string `json:"linked_by"`

	CreatedAt time.Time `json:"created_at"`
}

// TokenGrant is what a platform returns from a code exchange or refresh.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the token lifetime. Zero means the token does not expire.
	ExpiresIn time.Duration `json:"expires_in,omitempty"`

	Scope string `json:"scope,omitempty"`
}

// ResolvedToken is the result of delegation-aware token resolution for an
// account: either the account's own access token or the linked agency's.
type ResolvedToken struct {
	AccessToken string `json:"access_token"`

	// Delegated is true when the token belongs to a linked agency.
	Delegated bool `json:"delegated"`

	// AgencyID is set when Delegated is true.
	AgencyID string `json:"agency_id,omitempty"`
}

// PermissionAssignment holds the full permission set of one user in one
// workspace. There is exactly one assignment row per (user, workspace) pair;
// granting and revoking mutates the set, never adds rows.
type PermissionAssignment struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`

	// Permissions is the set of permission identifiers ("resource:action").
	Permissions []string `json:"permissions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Has reports whether the assignment contains the given permission identifier.
func (a *PermissionAssignment) Has(permission string) bool {
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// PermissionID formats a (resource, action) pair as a permission identifier.
func PermissionID(resource, action string) string {
	return resource + ":" + action
}

// ParsePermissionID splits a permission identifier into resource and action.
func ParsePermissionID(id string) (resource, action string, err error) {
	resource, action, ok := strings.Cut(id, ":")
	if !ok || resource == "" || action == "" {
		return "", "", fmt.Errorf("invalid permission identifier %q (want \"resource:action\")", id)
	}
	return resource, action, nil
}
