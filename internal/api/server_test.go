package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/adgate/adgate/internal/audit"
	"github.com/adgate/adgate/internal/authz"
	"github.com/adgate/adgate/internal/core"
	"github.com/adgate/adgate/internal/delegation"
	"github.com/adgate/adgate/internal/identity"
	"github.com/adgate/adgate/internal/platform"
	"github.com/adgate/adgate/internal/store"
	"github.com/adgate/adgate/internal/token"
)

// newTestServer wires the full stack on in-memory stores with a stub
// platform and three static identities.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	creds := store.NewInMemoryCredentialStore()
	principals := store.NewInMemoryPrincipalStore()
	links := store.NewInMemoryDelegationStore()
	perms := store.NewInMemoryPermissionStore()
	auditor := audit.NewInMemoryAuditor()

	gateways := platform.NewRegistry(platform.NewStubGateway("meta"))
	tokens := token.NewManager(creds, principals, gateways, auditor)
	resolver := delegation.NewResolver(links, principals, tokens, gateways, auditor)
	authorizer := authz.NewAuthorizer(perms, auditor)
	permSvc := authz.NewService(perms, auditor)
	identities := identity.NewRegistry(identity.NewStaticTokens("test", map[string]string{
		"token-owner":    "owner",
		"token-member":   "member",
		"token-outsider": "outsider",
	}))

	server := NewServer(tokens, resolver, authorizer, permSvc, identities, gateways, principals, creds, auditor)
	srv := httptest.NewServer(server.Routes([]byte("test-admin-key")))
	t.Cleanup(srv.Close)
	return srv
}

func request(t *testing.T, srv *httptest.Server, method, path, bearer string, payload any) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encoding payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, srv.URL+path, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	return resp, raw
}

func decodeInto(t *testing.T, raw []byte, dest any) {
	t.Helper()
	if err := json.Unmarshal(raw, dest); err != nil {
		t.Fatalf("decoding %s: %v", raw, err)
	}
}

// createWorkspace bootstraps a workspace as the given user and returns its id.
func createWorkspace(t *testing.T, srv *httptest.Server, bearer string) string {
	t.Helper()

	resp, raw := request(t, srv, http.MethodPost, "/v1/workspaces", bearer, map[string]string{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("creating workspace: HTTP %d: %s", resp.StatusCode, raw)
	}
	var assignment core.PermissionAssignment
	decodeInto(t, raw, &assignment)
	if assignment.WorkspaceID == "" {
		t.Fatal("workspace bootstrap returned no workspace id")
	}
	return assignment.WorkspaceID
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := request(t, srv, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health = HTTP %d", resp.StatusCode)
	}
}

func TestServer_AuthenticationRequired(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		bearer string
	}{
		{"no token", ""},
		{"unknown token", "token-bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := request(t, srv, http.MethodGet, "/v1/platforms/meta/auth-url?workspace_id=ws-1", tt.bearer, nil)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestServer_WorkspaceBootstrap(t *testing.T) {
	srv := newTestServer(t)

	ws := createWorkspace(t, srv, "token-owner")

	// the creator holds the owner set and can immediately operate
	resp, _ := request(t, srv, http.MethodGet,
		"/v1/platforms/meta/auth-url?workspace_id="+ws, "token-owner", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("auth-url after bootstrap = HTTP %d", resp.StatusCode)
	}

	// creating a workspace for someone else is not a self-provisioning
	resp, _ = request(t, srv, http.MethodPost, "/v1/workspaces", "token-owner",
		map[string]string{"owner_id": "member"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign bootstrap = HTTP %d, want 403", resp.StatusCode)
	}
}

func TestServer_Denial_IsUniform(t *testing.T) {
	srv := newTestServer(t)
	ws := createWorkspace(t, srv, "token-owner")

	// a missing workspace id and a missing permission produce the same
	// status, so a caller cannot probe which workspaces exist
	respNoWS, _ := request(t, srv, http.MethodGet, "/v1/platforms/meta/auth-url", "token-outsider", nil)
	respNoPerm, _ := request(t, srv, http.MethodGet,
		"/v1/platforms/meta/auth-url?workspace_id="+ws, "token-outsider", nil)

	if respNoWS.StatusCode != http.StatusForbidden {
		t.Errorf("missing workspace = HTTP %d, want 403", respNoWS.StatusCode)
	}
	if respNoPerm.StatusCode != http.StatusForbidden {
		t.Errorf("missing permission = HTTP %d, want 403", respNoPerm.StatusCode)
	}
}

func TestServer_CredentialLifecycle(t *testing.T) {
	srv := newTestServer(t)
	ws := createWorkspace(t, srv, "token-owner")

	resp, raw := request(t, srv, http.MethodPost, "/v1/principals", "token-owner",
		map[string]string{
			"kind":         "account",
			"platform":     "meta",
			"external_id":  "act-123",
			"workspace_id": ws,
		})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("registering principal: HTTP %d: %s", resp.StatusCode, raw)
	}
	var principal core.Principal
	decodeInto(t, raw, &principal)

	resp, raw = request(t, srv, http.MethodPost, "/v1/credentials/exchange", "token-owner",
		map[string]string{
			"principal_id": principal.ID,
			"code":         "code-1",
			"workspace_id": ws,
		})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("exchanging code: HTTP %d: %s", resp.StatusCode, raw)
	}
	var view CredentialView
	decodeInto(t, raw, &view)
	if view.Status != core.StatusActive {
		t.Errorf("credential status = %q, want active", view.Status)
	}
	if strings.Contains(string(raw), "adgate_stub_access_") {
		t.Error("credential response leaks token material")
	}
	if view.Fingerprint == "" || view.Fingerprint == "(n/a)" {
		t.Errorf("fingerprint = %q", view.Fingerprint)
	}

	// only the resolved-token endpoint hands out the raw token
	resp, raw = request(t, srv, http.MethodGet,
		fmt.Sprintf("/v1/principals/%s/token?workspace_id=%s", principal.ID, ws), "token-owner", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolving token: HTTP %d: %s", resp.StatusCode, raw)
	}
	var resolved core.ResolvedToken
	decodeInto(t, raw, &resolved)
	if resolved.AccessToken != "adgate_stub_access_code-1" {
		t.Errorf("resolved token = %q", resolved.AccessToken)
	}
	if resolved.Delegated {
		t.Error("resolution without a link must not be delegated")
	}

	// revoke, then the principal is no longer authenticated
	resp, raw = request(t, srv, http.MethodPost,
		fmt.Sprintf("/v1/credentials/%s/revoke?workspace_id=%s", view.ID, ws), "token-owner", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoking: HTTP %d: %s", resp.StatusCode, raw)
	}

	resp, raw = request(t, srv, http.MethodGet,
		fmt.Sprintf("/v1/principals/%s/authenticated?workspace_id=%s", principal.ID, ws), "token-owner", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated check: HTTP %d: %s", resp.StatusCode, raw)
	}
	var status map[string]bool
	decodeInto(t, raw, &status)
	if status["authenticated"] {
		t.Error("principal still authenticated after revocation")
	}
}

func TestServer_CrossWorkspaceAccessIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	wsOwner := createWorkspace(t, srv, "token-owner")
	wsMember := createWorkspace(t, srv, "token-member")

	resp, raw := request(t, srv, http.MethodPost, "/v1/principals", "token-owner",
		map[string]string{
			"kind":         "account",
			"platform":     "meta",
			"external_id":  "act-123",
			"workspace_id": wsOwner,
		})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("registering principal: HTTP %d: %s", resp.StatusCode, raw)
	}
	var principal core.Principal
	decodeInto(t, raw, &principal)

	// the member is fully authorized in their own workspace, but the
	// owner's principal must look nonexistent from there
	resp, _ = request(t, srv, http.MethodGet,
		fmt.Sprintf("/v1/principals/%s/token?workspace_id=%s", principal.ID, wsMember), "token-member", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cross-workspace token resolution = HTTP %d, want 404", resp.StatusCode)
	}
}

func TestServer_PermissionManagement(t *testing.T) {
	srv := newTestServer(t)
	ws := createWorkspace(t, srv, "token-owner")

	// the owner grants the member a read-only set
	resp, raw := request(t, srv, http.MethodPost, "/v1/permissions", "token-owner",
		map[string]any{
			"user_id":      "member",
			"workspace_id": ws,
			"permissions":  []string{"credential:read", "permission:read"},
		})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assigning permissions: HTTP %d: %s", resp.StatusCode, raw)
	}

	// the member cannot escalate: assigning requires permission:assign
	resp, _ = request(t, srv, http.MethodPost, "/v1/permissions", "token-member",
		map[string]any{
			"user_id":      "member",
			"workspace_id": ws,
			"permissions":  []string{"permission:assign"},
		})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("self-escalation = HTTP %d, want 403", resp.StatusCode)
	}

	// the member can read their own assignment
	resp, raw = request(t, srv, http.MethodGet,
		fmt.Sprintf("/v1/workspaces/%s/permissions/member", ws), "token-member", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reading assignment: HTTP %d: %s", resp.StatusCode, raw)
	}
	var assignment core.PermissionAssignment
	decodeInto(t, raw, &assignment)
	if !assignment.Has("credential:read") {
		t.Errorf("assignment = %v, missing credential:read", assignment.Permissions)
	}
}

func TestServer_Delegation(t *testing.T) {
	srv := newTestServer(t)
	ws := createWorkspace(t, srv, "token-owner")

	register := func(kind, externalID string) string {
		resp, raw := request(t, srv, http.MethodPost, "/v1/principals", "token-owner",
			map[string]string{
				"kind":         kind,
				"platform":     "meta",
				"external_id":  externalID,
				"workspace_id": ws,
			})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("registering %s: HTTP %d: %s", kind, resp.StatusCode, raw)
		}
		var p core.Principal
		decodeInto(t, raw, &p)
		return p.ID
	}
	connect := func(principalID, code string) {
		resp, raw := request(t, srv, http.MethodPost, "/v1/credentials/exchange", "token-owner",
			map[string]string{"principal_id": principalID, "code": code, "workspace_id": ws})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("connecting %s: HTTP %d: %s", principalID, resp.StatusCode, raw)
		}
	}

	accountID := register("account", "act-1")
	agencyID := register("agency", "agency-ext-1")
	connect(accountID, "code-account")
	connect(agencyID, "code-agency")

	resp, raw := request(t, srv, http.MethodPost, "/v1/delegations", "token-owner",
		map[string]string{
			"account_id":   accountID,
			"agency_id":    agencyID,
			"workspace_id": ws,
		})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("linking: HTTP %d: %s", resp.StatusCode, raw)
	}

	resp, raw = request(t, srv, http.MethodGet,
		fmt.Sprintf("/v1/principals/%s/token?workspace_id=%s", accountID, ws), "token-owner", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolving: HTTP %d: %s", resp.StatusCode, raw)
	}
	var resolved core.ResolvedToken
	decodeInto(t, raw, &resolved)
	if !resolved.Delegated || resolved.AgencyID != agencyID {
		t.Errorf("resolution = %+v, want delegated via %s", resolved, agencyID)
	}
	if resolved.AccessToken != "adgate_stub_access_code-agency" {
		t.Errorf("token = %q, want the agency's", resolved.AccessToken)
	}

	// unlink falls back to the account's own credential
	resp, _ = request(t, srv, http.MethodDelete,
		fmt.Sprintf("/v1/delegations/%s?workspace_id=%s", accountID, ws), "token-owner", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unlinking: HTTP %d", resp.StatusCode)
	}

	_, raw = request(t, srv, http.MethodGet,
		fmt.Sprintf("/v1/principals/%s/token?workspace_id=%s", accountID, ws), "token-owner", nil)
	decodeInto(t, raw, &resolved)
	if resolved.Delegated || resolved.AccessToken != "adgate_stub_access_code-account" {
		t.Errorf("resolution after unlink = %+v, want the account's own token", resolved)
	}
}

func TestServer_AdminRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := request(t, srv, http.MethodGet, "/v1/admin/credentials", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("admin without token = HTTP %d, want 401", resp.StatusCode)
	}
}

func adminSession(t *testing.T) string {
	t.Helper()

	session := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"roles": []string{"admin"},
	})
	signed, err := session.SignedString([]byte("test-admin-key"))
	if err != nil {
		t.Fatalf("signing admin session: %v", err)
	}
	return signed
}

func TestServer_AdminAuditLimitValidation(t *testing.T) {
	srv := newTestServer(t)
	session := adminSession(t)

	for _, limit := range []string{"-1", "0", "abc"} {
		resp, _ := request(t, srv, http.MethodGet, "/v1/admin/audits?limit="+limit, session, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("limit=%s = HTTP %d, want 400", limit, resp.StatusCode)
		}
	}

	resp, _ := request(t, srv, http.MethodGet, "/v1/admin/audits?limit=5", session, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("limit=5 = HTTP %d, want 200", resp.StatusCode)
	}
}

func TestServer_CorrelationIDPropagation(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/admin/credentials", nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("X-Correlation-ID", "cid-test-1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if got := resp.Header.Get("X-Correlation-ID"); got != "cid-test-1" {
		t.Errorf("echoed correlation header = %q, want cid-test-1", got)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	var errResp struct {
		CorrelationID string `json:"correlation_id"`
	}
	decodeInto(t, raw, &errResp)
	if errResp.CorrelationID != "cid-test-1" {
		t.Errorf("error body correlation_id = %q, want cid-test-1", errResp.CorrelationID)
	}
}

func TestServer_StrictPayloadDecoding(t *testing.T) {
	srv := newTestServer(t)
	ws := createWorkspace(t, srv, "token-owner")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/principals",
		strings.NewReader(fmt.Sprintf(`{"kind":"account","platform":"meta","external_id":"x","workspace_id":%q,"surprise":true}`, ws)))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token-owner")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown field = HTTP %d, want 400", resp.StatusCode)
	}
}
