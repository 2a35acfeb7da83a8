// Package audit records security-relevant decisions: credential issuance and
// refresh, delegation checks, and permission grants and denials.
package audit

import (
	"fmt"

	"github.com/adgate/adgate/internal/config"
	"github.com/adgate/adgate/internal/core"
)

// Build creates an auditor from configuration. Auditing disabled means noop.
func Build(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "file":
		return NewFileAuditor(cfg.Path)
	case "", "memory":
		return NewInMemoryAuditor(), nil
	default:
		return nil, fmt.Errorf("unknown audit type %q", cfg.Type)
	}
}
