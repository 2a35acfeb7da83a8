package authz

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adgate/adgate/internal/audit"
	"github.com/adgate/adgate/internal/core"
	"github.com/adgate/adgate/internal/store"
)

func newAuthorizer(t *testing.T) (*Authorizer, *store.InMemoryPermissionStore) {
	t.Helper()
	perms := store.NewInMemoryPermissionStore()
	return NewAuthorizer(perms, audit.NewNoopAuditor()), perms
}

func grant(t *testing.T, perms *store.InMemoryPermissionStore, userID, workspaceID string, ids ...string) {
	t.Helper()
	if _, err := perms.Assign(context.Background(), userID, workspaceID, ids...); err != nil {
		t.Fatalf("seeding assignment: %v", err)
	}
}

func TestAuthorizer_Authorize(t *testing.T) {
	spec := RouteSpec{
		Resource:  "credential",
		Action:    "read",
		Workspace: DefaultWorkspaceSources(),
	}

	tests := []struct {
		name    string
		userID  string
		granted []string
		request func() *http.Request
		wantWS  string
		wantErr error
	}{
		{
			name:    "permission held in workspace",
			userID:  "user-1",
			granted: []string{"credential:read"},
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/v1/credentials?workspace_id=ws-1", nil)
			},
			wantWS: "ws-1",
		},
		{
			name:   "no assignment row denies",
			userID: "user-1",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/v1/credentials?workspace_id=ws-1", nil)
			},
			wantErr: core.ErrPermissionDenied,
		},
		{
			name:    "assignment without the needed permission denies",
			userID:  "user-1",
			granted: []string{"credential:connect"},
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/v1/credentials?workspace_id=ws-1", nil)
			},
			wantErr: core.ErrPermissionDenied,
		},
		{
			name:    "request without workspace context",
			userID:  "user-1",
			granted: []string{"credential:read"},
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/v1/credentials", nil)
			},
			wantErr: core.ErrWorkspaceContextMissing,
		},
		{
			name:   "unauthenticated",
			userID: "",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/v1/credentials?workspace_id=ws-1", nil)
			},
			wantErr: core.ErrAuthenticationRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authorizer, perms := newAuthorizer(t)
			if len(tt.granted) > 0 {
				grant(t, perms, tt.userID, "ws-1", tt.granted...)
			}

			ws, err := authorizer.Authorize(context.Background(), tt.request(), tt.userID, spec)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Authorize() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authorize() error = %v", err)
			}
			if ws != tt.wantWS {
				t.Errorf("workspace = %q, want %q", ws, tt.wantWS)
			}
		})
	}
}

func TestAuthorizer_Authorize_WorkspaceSourcePrecedence(t *testing.T) {
	authorizer, perms := newAuthorizer(t)
	grant(t, perms, "user-1", "ws-query", "credential:read")

	// query outranks body and header when no path parameter matches
	body := strings.NewReader(`{"workspace_id":"ws-body"}`)
	r := httptest.NewRequest(http.MethodPost, "/v1/credentials?workspace_id=ws-query", body)
	r.Header.Set("X-Workspace-ID", "ws-header")

	ws, err := authorizer.Authorize(context.Background(), r, "user-1", RouteSpec{
		Resource:  "credential",
		Action:    "read",
		Workspace: DefaultWorkspaceSources(),
	})
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if ws != "ws-query" {
		t.Errorf("workspace = %q, want ws-query", ws)
	}
}

func TestAuthorizer_Authorize_UndeclaredSourceIgnored(t *testing.T) {
	authorizer, perms := newAuthorizer(t)
	grant(t, perms, "user-1", "ws-1", "credential:read")

	// the route only declares the header source, so a query value is not
	// honored
	r := httptest.NewRequest(http.MethodGet, "/v1/credentials?workspace_id=ws-1", nil)

	_, err := authorizer.Authorize(context.Background(), r, "user-1", RouteSpec{
		Resource:  "credential",
		Action:    "read",
		Workspace: []WorkspaceSource{{Kind: SourceHeader, Name: "X-Workspace-ID"}},
	})
	if !errors.Is(err, core.ErrWorkspaceContextMissing) {
		t.Errorf("Authorize() error = %v, want ErrWorkspaceContextMissing", err)
	}
}

func TestAuthorizer_Authorize_Bootstrap(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{
			name: "self provisioning without workspace",
			body: `{"owner_id":"user-1"}`,
		},
		{
			name: "empty owner defaults to self",
			body: `{}`,
		},
		{
			name:    "provisioning for someone else",
			body:    `{"owner_id":"user-2"}`,
			wantErr: core.ErrWorkspaceContextMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authorizer, _ := newAuthorizer(t)
			r := httptest.NewRequest(http.MethodPost, "/v1/workspaces", strings.NewReader(tt.body))

			ws, err := authorizer.Authorize(context.Background(), r, "user-1", RouteSpec{
				Resource:  "workspace",
				Action:    "create",
				Workspace: DefaultWorkspaceSources(),
				Bootstrap: true,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Authorize() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authorize() error = %v", err)
			}
			if ws != "" {
				t.Errorf("workspace = %q, want empty for bootstrap", ws)
			}
		})
	}
}

func TestAuthorizer_PermissionsAreWorkspaceScoped(t *testing.T) {
	authorizer, perms := newAuthorizer(t)
	grant(t, perms, "user-1", "ws-1", "credential:read")

	allowed, err := authorizer.UserHasPermission(context.Background(), "user-1", "ws-2", "credential", "read")
	if err != nil {
		t.Fatalf("UserHasPermission() error = %v", err)
	}
	if allowed {
		t.Error("permission in ws-1 must not leak into ws-2")
	}
}

func TestAuthorizer_UserHasWorkspaceAccess(t *testing.T) {
	authorizer, perms := newAuthorizer(t)
	grant(t, perms, "user-1", "ws-1", "credential:read")

	tests := []struct {
		name        string
		userID      string
		workspaceID string
		want        bool
	}{
		{"member", "user-1", "ws-1", true},
		{"wrong workspace", "user-1", "ws-2", false},
		{"unknown user", "user-2", "ws-1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := authorizer.UserHasWorkspaceAccess(context.Background(), tt.userID, tt.workspaceID)
			if err != nil {
				t.Fatalf("UserHasWorkspaceAccess() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("UserHasWorkspaceAccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveWorkspace_PathParameter(t *testing.T) {
	mux := http.NewServeMux()
	var got string
	mux.HandleFunc("GET /v1/workspaces/{workspace_id}/permissions", func(w http.ResponseWriter, r *http.Request) {
		got, _ = resolveWorkspace(r, DefaultWorkspaceSources())
	})

	r := httptest.NewRequest(http.MethodGet, "/v1/workspaces/ws-path/permissions?workspace_id=ws-query", nil)
	mux.ServeHTTP(httptest.NewRecorder(), r)

	if got != "ws-path" {
		t.Errorf("resolveWorkspace() = %q, want the path value ws-path", got)
	}
}

func TestResolveWorkspace_OversizedBody(t *testing.T) {
	pad := strings.Repeat("a", maxBodyPeek+1)
	r := httptest.NewRequest(http.MethodPost, "/v1/token",
		strings.NewReader(`{"pad":"`+pad+`","workspace_id":"ws-1"}`))

	_, err := resolveWorkspace(r, DefaultWorkspaceSources())
	if !errors.Is(err, core.ErrRequestTooLarge) {
		t.Fatalf("resolveWorkspace() error = %v, want ErrRequestTooLarge", err)
	}

	// a body within the limit still resolves and is restored intact
	small := `{"workspace_id":"ws-1"}`
	r = httptest.NewRequest(http.MethodPost, "/v1/token", strings.NewReader(small))
	ws, err := resolveWorkspace(r, DefaultWorkspaceSources())
	if err != nil {
		t.Fatalf("resolveWorkspace() error = %v", err)
	}
	if ws != "ws-1" {
		t.Errorf("resolveWorkspace() = %q, want ws-1", ws)
	}
	restored := make([]byte, len(small))
	if _, err := io.ReadFull(r.Body, restored); err != nil || string(restored) != small {
		t.Errorf("restored body = %q (err %v), want original payload", restored, err)
	}
}
