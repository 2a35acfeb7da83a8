package api

import (
	"net/http"
	"strings"

	"github.com/adgate/adgate/internal/api/middleware"
	"github.com/adgate/adgate/internal/api/presenter"
	"github.com/adgate/adgate/internal/audit"
	"github.com/adgate/adgate/internal/authz"
	"github.com/adgate/adgate/internal/core"
	"github.com/adgate/adgate/internal/delegation"
	"github.com/adgate/adgate/internal/identity"
	"github.com/adgate/adgate/internal/platform"
	"github.com/adgate/adgate/internal/token"
)

type Server struct {
	tokens      *token.Manager
	delegations *delegation.Resolver
	authorizer  *authz.Authorizer
	perms       *authz.Service
	identities  *identity.Registry
	platforms   *platform.Registry
	principals  core.PrincipalStore
	creds       core.CredentialStore
	auditor     core.Auditor
}

func NewServer(
	tokens *token.Manager,
	delegations *delegation.Resolver,
	authorizer *authz.Authorizer,
	perms *authz.Service,
	identities *identity.Registry,
	platforms *platform.Registry,
	principals core.PrincipalStore,
	creds core.CredentialStore,
	auditor core.Auditor,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}

	return &Server{
		tokens:      tokens,
		delegations: delegations,
		authorizer:  authorizer,
		perms:       perms,
		identities:  identities,
		platforms:   platforms,
		principals:  principals,
		creds:       creds,
		auditor:     auditor,
	}
}

func (s *Server) Routes(adminSigningKey []byte) http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.HandleFunc("GET "+ListPlatformsRoute, s.handlePlatforms)

	// credential lifecycle
	mux.HandleFunc("GET "+AuthURLRoute, s.protect(authz.RouteSpec{
		Resource:  "credential",
		Action:    "connect",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleAuthURL))
	mux.HandleFunc("POST "+RegisterPrincipalRoute, s.protect(authz.RouteSpec{
		Resource:  "credential",
		Action:    "connect",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleRegisterPrincipal))
	mux.HandleFunc("POST "+ExchangeCodeRoute, s.protect(authz.RouteSpec{
		Resource:  "credential",
		Action:    "connect",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleExchange))
	mux.HandleFunc("POST "+RefreshCredentialRoute, s.protect(authz.RouteSpec{
		Resource:  "credential",
		Action:    "manage",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleRefresh))
	mux.HandleFunc("POST "+RevokeCredentialRoute, s.protect(authz.RouteSpec{
		Resource:  "credential",
		Action:    "manage",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleRevoke))
	mux.HandleFunc("POST "+ValidateCredentialRoute, s.protect(authz.RouteSpec{
		Resource:  "credential",
		Action:    "manage",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleValidate))

	// delegation-aware token resolution and credential reads
	mux.HandleFunc("GET "+ResolvedTokenRoute, s.protect(authz.RouteSpec{
		Resource:  "credential",
		Action:    "use",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleResolvedToken))
	mux.HandleFunc("GET "+AuthenticatedRoute, s.protect(authz.RouteSpec{
		Resource:  "credential",
		Action:    "read",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleAuthenticated))
	mux.HandleFunc("GET "+ListCredentialsRoute, s.protect(authz.RouteSpec{
		Resource:  "credential",
		Action:    "read",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleListCredentials))

	// delegation links
	mux.HandleFunc("POST "+LinkDelegationRoute, s.protect(authz.RouteSpec{
		Resource:  "delegation",
		Action:    "link",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleLink))
	mux.HandleFunc("DELETE "+UnlinkDelegationRoute, s.protect(authz.RouteSpec{
		Resource:  "delegation",
		Action:    "unlink",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleUnlink))

	// workspace bootstrap: a fresh identity may create its first workspace
	// without any prior permission row
	mux.HandleFunc("POST "+CreateWorkspaceRoute, s.protect(authz.RouteSpec{
		Resource:  "workspace",
		Action:    "create",
		Workspace: authz.DefaultWorkspaceSources(),
		Bootstrap: true,
	}, s.handleCreateWorkspace))

	// permission management authorizes inside the service (actor check plus
	// first-grant bootstrap), so these routes only resolve the identity
	mux.HandleFunc("POST "+AssignPermissionsRoute, s.authenticated(s.handleAssign))
	mux.HandleFunc("DELETE "+AssignPermissionsRoute, s.authenticated(s.handleRemove))
	mux.HandleFunc("POST "+BulkAssignRoute, s.authenticated(s.handleBulkAssign))
	mux.HandleFunc("GET "+GetAssignmentRoute, s.protect(authz.RouteSpec{
		Resource:  "permission",
		Action:    "read",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleGetAssignment))
	mux.HandleFunc("GET "+ListAssignmentsRoute, s.protect(authz.RouteSpec{
		Resource:  "permission",
		Action:    "read",
		Workspace: authz.DefaultWorkspaceSources(),
	}, s.handleListAssignments))

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudits)
	adminMux.HandleFunc("GET "+ListAllCredentialsRoute, s.handleAdminCredentials)
	mux.Handle(AdminParent, middleware.AdminAuth(adminSigningKey)(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}

// Actor is the authorized identity a protected handler runs as.
type Actor struct {
	UserID      string
	WorkspaceID string
}

type protectedHandler func(w http.ResponseWriter, r *http.Request, actor Actor)

// protect resolves the caller's identity, authorizes the request against
// the route's declared permission and workspace sources, and only then
// invokes the handler.
func (s *Server) protect(spec authz.RouteSpec, h protectedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.resolveUser(r)
		if err != nil {
			presenter.Err(w, r, err, "authorization failed")
			return
		}

		workspaceID, err := s.authorizer.Authorize(r.Context(), r, userID, spec)
		if err != nil {
			presenter.Err(w, r, err, "authorization failed")
			return
		}

		h(w, r, Actor{UserID: userID, WorkspaceID: workspaceID})
	}
}

// authenticated resolves the caller's identity without a route-level
// permission check. Handlers using it must authorize downstream.
func (s *Server) authenticated(h protectedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.resolveUser(r)
		if err != nil {
			presenter.Err(w, r, err, "authorization failed")
			return
		}
		h(w, r, Actor{UserID: userID})
	}
}

func (s *Server) resolveUser(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	return s.identities.Resolve(r.Context(), token)
}
