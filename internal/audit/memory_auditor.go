package audit

import (
	"sync"

	"github.com/adgate/adgate/internal/core"
)

var _ core.Auditor = (*InMemoryAuditor)(nil)

// InMemoryAuditor keeps the audit trail in process memory. It backs the
// memory storage mode and the admin audit queries; entries are lost on
// restart, which is acceptable only outside production.
type InMemoryAuditor struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func NewInMemoryAuditor() *InMemoryAuditor {
	return &InMemoryAuditor{}
}

func (a *InMemoryAuditor) Log(entry core.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append(a.entries, entry)
	return nil
}

// GetRecent returns up to limit of the newest entries, oldest first.
func (a *InMemoryAuditor) GetRecent(limit int) ([]core.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return tail(a.entries, limit), nil
}

// Find returns the newest entries matching the filter, capped at limit.
func (a *InMemoryAuditor) Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var matches []core.AuditEntry
	for _, entry := range a.entries {
		if filter(entry) {
			matches = append(matches, entry)
		}
	}
	return tail(matches, limit), nil
}

func (a *InMemoryAuditor) Close() error {
	return nil
}

// tail copies the last limit entries so callers cannot mutate the trail.
// A non-positive limit yields an empty result.
func tail(entries []core.AuditEntry, limit int) []core.AuditEntry {
	if limit < 0 {
		limit = 0
	}
	if limit > len(entries) {
		limit = len(entries)
	}
	out := make([]core.AuditEntry, limit)
	copy(out, entries[len(entries)-limit:])
	return out
}
