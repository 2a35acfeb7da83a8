package authz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/adgate/adgate/internal/core"
)

// SourceKind names a location a route can carry its workspace id in.
type SourceKind string

const (
	SourcePath   SourceKind = "path"
	SourceQuery  SourceKind = "query"
	SourceBody   SourceKind = "body"
	SourceHeader SourceKind = "header"
)

// WorkspaceSource is one declared location for the workspace id.
type WorkspaceSource struct {
	Kind SourceKind
	Name string
}

// RouteSpec declares, at registration time, what a route needs to be
// authorized: the permission it requires and where its workspace id lives.
// Declaring sources up front replaces scanning the URL path at runtime.
type RouteSpec struct {
	// Resource and Action form the required permission identifier.
	Resource string
	Action   string

	// Workspace lists the id sources in precedence order; the first one
	// that yields a value wins.
	Workspace []WorkspaceSource

	// Bootstrap marks a resource creation with no workspace dependency
	// (e.g. a new identity creating its first workspace). Such a route may
	// proceed without workspace context if the acting identity is
	// provisioning for itself.
	Bootstrap bool
}

// DefaultWorkspaceSources is the standard precedence: path parameter, query
// parameter, body field, dedicated header.
func DefaultWorkspaceSources() []WorkspaceSource {
	return []WorkspaceSource{
		{Kind: SourcePath, Name: "workspace_id"},
		{Kind: SourceQuery, Name: "workspace_id"},
		{Kind: SourceBody, Name: "workspace_id"},
		{Kind: SourceHeader, Name: "X-Workspace-ID"},
	}
}

// maxBodyPeek bounds how much of a request body workspace resolution will
// buffer. Anything larger is rejected rather than silently cut short.
const maxBodyPeek = 1 << 20

// resolveWorkspace walks the declared sources in order and returns the first
// workspace id found, or "".
func resolveWorkspace(r *http.Request, sources []WorkspaceSource) (string, error) {
	for _, src := range sources {
		switch src.Kind {
		case SourcePath:
			if v := r.PathValue(src.Name); v != "" {
				return v, nil
			}
		case SourceQuery:
			if v := r.URL.Query().Get(src.Name); v != "" {
				return v, nil
			}
		case SourceBody:
			v, err := bodyField(r, src.Name)
			if err != nil {
				return "", err
			}
			if v != "" {
				return v, nil
			}
		case SourceHeader:
			if v := r.Header.Get(src.Name); v != "" {
				return v, nil
			}
		}
	}
	return "", nil
}

// bodyField peeks a single string field out of a JSON request body. The body
// is restored so the handler can decode it again; a body beyond maxBodyPeek
// fails the request instead of being restored truncated.
func bodyField(r *http.Request, field string) (string, error) {
	if r.Body == nil {
		return "", nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyPeek+1))
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return "", nil
	}
	if len(raw) > maxBodyPeek {
		return "", fmt.Errorf("body exceeds %d bytes: %w", maxBodyPeek, core.ErrRequestTooLarge)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil
	}
	v, _ := payload[field].(string)
	return v, nil
}
