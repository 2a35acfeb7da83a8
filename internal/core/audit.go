package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "credential.issue", "permission.assign")
	Action string `json:"action"`

	// ActorID identifies the user who made the request, if any.
	ActorID string `json:"actor_id,omitempty"`

	// PrincipalID is the credential owner the action targeted.
	PrincipalID string `json:"principal_id,omitempty"`

	// Platform the action targeted.
	Platform string `json:"platform,omitempty"`

	// Workspace/permission decision details.
	WorkspaceID string   `json:"workspace_id,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`

	Granted bool   `json:"granted"`
	Error   string `json:"error,omitempty"`

	// Metadata contains extra details (e.g. credential id, agency id).
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}
