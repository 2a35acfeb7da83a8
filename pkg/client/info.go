package client

import (
	"context"

	"github.com/adgate/adgate/internal/api"
	"github.com/adgate/adgate/internal/buildinfo"
)

// Info fetches the server's build information from the public about route.
func (c *Client) Info(ctx context.Context) (*buildinfo.Info, string, error) {
	var info buildinfo.Info
	correlation, err := c.get(ctx, c.url().
		setPath(api.AboutRoute).
		build(), &info)
	return &info, correlation, err
}
