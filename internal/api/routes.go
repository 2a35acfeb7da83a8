package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/v1/about"

	ListPlatformsRoute = "/v1/platforms"
	AuthURLRoute       = "/v1/platforms/{platform}/auth-url"

	RegisterPrincipalRoute  = "/v1/principals"
	ExchangeCodeRoute       = "/v1/credentials/exchange"
	RefreshCredentialRoute  = "/v1/credentials/{id}/refresh"
	RevokeCredentialRoute   = "/v1/credentials/{id}/revoke"
	ValidateCredentialRoute = "/v1/credentials/{id}/validate"

	ResolvedTokenRoute   = "/v1/principals/{principal_id}/token"
	AuthenticatedRoute   = "/v1/principals/{principal_id}/authenticated"
	ListCredentialsRoute = "/v1/principals/{principal_id}/credentials"

	LinkDelegationRoute   = "/v1/delegations"
	UnlinkDelegationRoute = "/v1/delegations/{account_id}"

	CreateWorkspaceRoute   = "/v1/workspaces"
	AssignPermissionsRoute = "/v1/permissions"
	BulkAssignRoute        = "/v1/permissions/bulk"
	GetAssignmentRoute     = "/v1/workspaces/{workspace_id}/permissions/{user_id}"
	ListAssignmentsRoute   = "/v1/workspaces/{workspace_id}/permissions"

	AdminParent             = "/v1/admin/"
	ListAuditsRoute         = AdminParent + "audits"
	ListAllCredentialsRoute = AdminParent + "credentials"
)
