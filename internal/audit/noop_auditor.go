package audit

import "github.com/adgate/adgate/internal/core"

var _ core.Auditor = (*NoopAuditor)(nil)

// NoopAuditor discards every entry. Used when the audit trail is disabled
// in configuration.
type NoopAuditor struct{}

func NewNoopAuditor() *NoopAuditor {
	return &NoopAuditor{}
}

func (n *NoopAuditor) Log(core.AuditEntry) error { return nil }

func (n *NoopAuditor) Close() error { return nil }
