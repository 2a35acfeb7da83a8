package core

import (
	"context"
	"time"
)

// ProviderGateway abstracts one external advertising platform's OAuth and
// resource-access endpoints. Implementations must be stateless: tokens are
// passed explicitly on every call, never held in the gateway.
type ProviderGateway interface {
	// Platform returns the platform tag this gateway serves (as used in config).
	Platform() string

	// AuthURL returns the authorization URL a user is redirected to,
	// carrying the opaque state parameter.
	AuthURL(state string) string

	// ExchangeCode trades a one-time authorization code for tokens.
	ExchangeCode(ctx context.Context, code string) (*TokenGrant, error)

	// Refresh trades a refresh token for a fresh grant.
	Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error)

	// Revoke invalidates the access token on the platform. It returns true
	// only when the platform confirmed the revocation.
	Revoke(ctx context.Context, accessToken string) (bool, error)

	// Validate checks whether the access token is still accepted.
	Validate(ctx context.Context, accessToken string) (bool, error)

	// VerifyDelegatedAccess checks that the bearer of agencyToken has been
	// granted access to the external resource on the platform. Mere
	// existence of the agency is not enough.
	VerifyDelegatedAccess(ctx context.Context, agencyToken, externalResourceID string) (bool, error)
}

// CredentialStore is the durable credential record store.
type CredentialStore interface {
	// Save persists a new credential. When the credential is active, any
	// prior active credential of the same principal is superseded
	// (status moves to expired) in the same write; superseded records are
	// kept, never deleted.
	Save(ctx context.Context, cred *Credential) error

	// GetByID returns a credential record. ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*Credential, error)

	// GetActive returns the principal's single active credential.
	// ErrNotFound if the principal has none.
	GetActive(ctx context.Context, principalID string) (*Credential, error)

	// Update writes a mutated credential using optimistic concurrency:
	// the write only applies if the stored version still equals
	// cred.Version-1, otherwise ErrVersionConflict.
	Update(ctx context.Context, cred *Credential) error

	// ListByPrincipal returns all credential records of a principal,
	// newest first.
	ListByPrincipal(ctx context.Context, principalID string) ([]*Credential, error)

	// ListAll returns every credential record, newest first. Operator
	// surface only.
	ListAll(ctx context.Context) ([]*Credential, error)
}

// PrincipalStore looks up accounts and agencies.
type PrincipalStore interface {
	Save(ctx context.Context, p *Principal) error
	GetByID(ctx context.Context, id string) (*Principal, error)
}

// DelegationStore persists agency links for managed accounts.
type DelegationStore interface {
	// SaveLink persists the link, replacing an existing link for the account.
	SaveLink(ctx context.Context, link *DelegationLink) error

	// GetLink returns the account's link. ErrNotFound if the account is
	// not delegated.
	GetLink(ctx context.Context, accountID string) (*DelegationLink, error)

	// DeleteLink removes the account's link. Deleting a missing link is
	// not an error.
	DeleteLink(ctx context.Context, accountID string) error
}

// PermissionStore maps (user, workspace) to a set of permission identifiers.
// There is exactly one assignment row per pair.
type PermissionStore interface {
	// Assign upserts the given identifiers into the pair's set. Adding an
	// identifier that is already present is a no-op.
	Assign(ctx context.Context, userID, workspaceID string, permissions ...string) (*PermissionAssignment, error)

	// Remove deletes identifiers from the set. The row is removed when the
	// set becomes empty.
	Remove(ctx context.Context, userID, workspaceID string, permissions ...string) error

	// RemoveAll deletes the pair's assignment row.
	RemoveAll(ctx context.Context, userID, workspaceID string) error

	// Get returns the pair's assignment. ErrNotFound when no row exists.
	Get(ctx context.Context, userID, workspaceID string) (*PermissionAssignment, error)

	// ListByWorkspace returns every assignment row of a workspace.
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*PermissionAssignment, error)
}

// Clock returns the current time; injected so expiry checks are testable.
type Clock func() time.Time
