package client

import (
	"context"

	"github.com/adgate/adgate/internal/api"
	"github.com/adgate/adgate/internal/core"
)

// ExchangeCode exchanges an OAuth authorization code for a stored credential.
func (c *Client) ExchangeCode(ctx context.Context, principalID, code, workspaceID string) (*api.CredentialView, string, error) {
	payload := api.ExchangePayload{
		PrincipalID: principalID,
		Code:        code,
		WorkspaceID: workspaceID,
	}
	var view api.CredentialView
	correlation, err := c.post(ctx, c.url().
		setPath(api.ExchangeCodeRoute).
		build(), payload, &view)
	if err != nil {
		return nil, correlation, err
	}
	return &view, correlation, nil
}

// ResolvedToken returns the delegation-aware access token for a principal.
func (c *Client) ResolvedToken(ctx context.Context, principalID, workspaceID string) (*core.ResolvedToken, string, error) {
	var resolved core.ResolvedToken
	correlation, err := c.get(ctx, c.url().
		setPath(api.ResolvedTokenRoute).
		withPathValue("principal_id", principalID).
		addQueryParam("workspace_id", workspaceID).
		build(), &resolved)
	if err != nil {
		return nil, correlation, err
	}
	return &resolved, correlation, nil
}

// ListCredentials lists all credential records of a principal, newest first.
func (c *Client) ListCredentials(ctx context.Context, principalID, workspaceID string) ([]api.CredentialView, string, error) {
	var views []api.CredentialView
	correlation, err := c.get(ctx, c.url().
		setPath(api.ListCredentialsRoute).
		withPathValue("principal_id", principalID).
		addQueryParam("workspace_id", workspaceID).
		build(), &views)
	return views, correlation, err
}
