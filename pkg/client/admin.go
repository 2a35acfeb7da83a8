package client

import (
	"context"

	"github.com/adgate/adgate/internal/api"
	"github.com/adgate/adgate/internal/core"
)

type ListAuditsOpts struct {
	Limit uint

	Action      string
	UserID      string
	WorkspaceID string
	PrincipalID string
}

// ListAudits retrieves the latest audit entries from the server, limited to the specified number.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.ListAuditsRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.Action != "" {
		ub = ub.addQueryParam("action", opts.Action)
	}
	if opts.UserID != "" {
		ub = ub.addQueryParam("user_id", opts.UserID)
	}
	if opts.WorkspaceID != "" {
		ub = ub.addQueryParam("workspace_id", opts.WorkspaceID)
	}
	if opts.PrincipalID != "" {
		ub = ub.addQueryParam("principal_id", opts.PrincipalID)
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}

// ListAllCredentials retrieves every stored credential (fingerprints only,
// no token material). Requires an admin session.
func (c *Client) ListAllCredentials(ctx context.Context) ([]api.CredentialView, string, error) {
	var resp []api.CredentialView
	correlation, err := c.get(ctx, c.url().
		setPath(api.ListAllCredentialsRoute).
		build(), &resp)
	return resp, correlation, err
}
