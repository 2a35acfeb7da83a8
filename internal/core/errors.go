package core

import (
	"errors"
	"fmt"
)

// Sentinel errors of the credential and authorization core. Callers match
// with errors.Is; the API layer maps them to HTTP statuses.
var (
	// ErrAuthenticationRequired is returned when no valid identity could be
	// resolved from the inbound request.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrCredentialExpired is returned when a credential is expired and
	// cannot be refreshed (no refresh token, or the platform rejected the
	// refresh). The caller must re-run the authorization flow.
	ErrCredentialExpired = errors.New("credential expired")

	// ErrCredentialRevoked is returned when the credential was revoked.
	ErrCredentialRevoked = errors.New("credential revoked")

	// ErrDelegationNotVerified is returned when an agency link is requested
	// but the platform did not confirm the agency's access to the account's
	// external resource.
	ErrDelegationNotVerified = errors.New("delegated access not verified")

	// ErrWorkspaceContextMissing is returned when no workspace could be
	// resolved for an operation that requires one.
	ErrWorkspaceContextMissing = errors.New("workspace context missing")

	// ErrPermissionDenied is returned when the acting user lacks the
	// required permission in the resolved workspace.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnsupportedPlatform is returned when no gateway is registered for
	// the requested platform. Unknown platforms fail closed.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrRequestTooLarge is returned when a request body exceeds the size
	// limit applied before workspace resolution.
	ErrRequestTooLarge = errors.New("request body too large")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by stores when an optimistic write
	// lost against a concurrent mutation.
	ErrVersionConflict = errors.New("version conflict")
)

// ProviderError wraps a failure from an external platform. Retryable marks
// transient failures (timeouts, 5xx); the caller may retry those with
// backoff. Terminal platform answers (e.g. "invalid_grant") are not wrapped
// in a ProviderError but mapped to the matching sentinel by the lifecycle
// manager.
type ProviderError struct {
	// Platform the call targeted.
	Platform string

	// Op is the gateway operation, e.g. "exchange", "refresh", "revoke".
	Op string

	// Retryable is true for transient failures.
	Retryable bool

	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("platform %s: %s: %v", e.Platform, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps an upstream failure.
func NewProviderError(platform, op string, retryable bool, err error) *ProviderError {
	return &ProviderError{Platform: platform, Op: op, Retryable: retryable, Err: err}
}

// IsRetryable reports whether err is a ProviderError marked retryable.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}
