// Package store provides in-memory implementations of the core store ports.
// They back tests and the "memory" storage mode; durable deployments use the
// sqlite sub-package.
package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/adgate/adgate/internal/core"
)

type InMemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]*core.Credential // by credential id
}

func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{
		creds: make(map[string]*core.Credential),
	}
}

func (s *InMemoryCredentialStore) Save(_ context.Context, cred *core.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.creds[cred.ID]; exists {
		return fmt.Errorf("credential %s already exists", cred.ID)
	}

	// a new active credential supersedes the principal's prior active one
	if cred.Status == core.StatusActive {
		for _, c := range s.creds {
			if c.PrincipalID == cred.PrincipalID && c.Status == core.StatusActive {
				c.Status = core.StatusExpired
				c.Version++
				c.UpdatedAt = time.Now()
			}
		}
	}

	cp := *cred
	s.creds[cred.ID] = &cp
	return nil
}

func (s *InMemoryCredentialStore) GetByID(_ context.Context, id string) (*core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.creds[id]
	if !ok {
		return nil, fmt.Errorf("credential %s: %w", id, core.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryCredentialStore) GetActive(_ context.Context, principalID string) (*core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.creds {
		if c.PrincipalID == principalID && c.Status == core.StatusActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("active credential for principal %s: %w", principalID, core.ErrNotFound)
}

func (s *InMemoryCredentialStore) Update(_ context.Context, cred *core.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.creds[cred.ID]
	if !ok {
		return fmt.Errorf("credential %s: %w", cred.ID, core.ErrNotFound)
	}
	if stored.Version != cred.Version-1 {
		return fmt.Errorf("credential %s at version %d, write expected %d: %w",
			cred.ID, stored.Version, cred.Version-1, core.ErrVersionConflict)
	}

	cp := *cred
	cp.UpdatedAt = time.Now()
	s.creds[cred.ID] = &cp
	return nil
}

func (s *InMemoryCredentialStore) ListByPrincipal(_ context.Context, principalID string) ([]*core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Credential
	for _, c := range s.creds {
		if c.PrincipalID == principalID {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *core.Credential) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *InMemoryCredentialStore) ListAll(_ context.Context) ([]*core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.Credential, 0, len(s.creds))
	for _, c := range s.creds {
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *core.Credential) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

type InMemoryPrincipalStore struct {
	mu         sync.RWMutex
	principals map[string]*core.Principal
}

func NewInMemoryPrincipalStore() *InMemoryPrincipalStore {
	return &InMemoryPrincipalStore{
		principals: make(map[string]*core.Principal),
	}
}

func (s *InMemoryPrincipalStore) Save(_ context.Context, p *core.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.principals[p.ID] = &cp
	return nil
}

func (s *InMemoryPrincipalStore) GetByID(_ context.Context, id string) (*core.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[id]
	if !ok {
		return nil, fmt.Errorf("principal %s: %w", id, core.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

type InMemoryDelegationStore struct {
	mu    sync.RWMutex
	links map[string]*core.DelegationLink // by account id
}

func NewInMemoryDelegationStore() *InMemoryDelegationStore {
	return &InMemoryDelegationStore{
		links: make(map[string]*core.DelegationLink),
	}
}

func (s *InMemoryDelegationStore) SaveLink(_ context.Context, link *core.DelegationLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *link
	s.links[link.AccountID] = &cp
	return nil
}

func (s *InMemoryDelegationStore) GetLink(_ context.Context, accountID string) (*core.DelegationLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.links[accountID]
	if !ok {
		return nil, fmt.Errorf("delegation link for account %s: %w", accountID, core.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (s *InMemoryDelegationStore) DeleteLink(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.links, accountID)
	return nil
}

type assignmentKey struct {
	userID      string
	workspaceID string
}

type InMemoryPermissionStore struct {
	mu          sync.RWMutex
	assignments map[assignmentKey]*core.PermissionAssignment
}

func NewInMemoryPermissionStore() *InMemoryPermissionStore {
	return &InMemoryPermissionStore{
		assignments: make(map[assignmentKey]*core.PermissionAssignment),
	}
}

func (s *InMemoryPermissionStore) Assign(_ context.Context, userID, workspaceID string, permissions ...string) (*core.PermissionAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey{userID: userID, workspaceID: workspaceID}
	a, ok := s.assignments[key]
	if !ok {
		now := time.Now()
		a = &core.PermissionAssignment{
			UserID:      userID,
			WorkspaceID: workspaceID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.assignments[key] = a
	}

	for _, p := range permissions {
		if !a.Has(p) {
			a.Permissions = append(a.Permissions, p)
		}
	}
	a.UpdatedAt = time.Now()

	cp := *a
	cp.Permissions = slices.Clone(a.Permissions)
	return &cp, nil
}

func (s *InMemoryPermissionStore) Remove(_ context.Context, userID, workspaceID string, permissions ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey{userID: userID, workspaceID: workspaceID}
	a, ok := s.assignments[key]
	if !ok {
		return nil
	}

	a.Permissions = slices.DeleteFunc(a.Permissions, func(p string) bool {
		return slices.Contains(permissions, p)
	})
	if len(a.Permissions) == 0 {
		delete(s.assignments, key)
		return nil
	}
	a.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryPermissionStore) RemoveAll(_ context.Context, userID, workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.assignments, assignmentKey{userID: userID, workspaceID: workspaceID})
	return nil
}

func (s *InMemoryPermissionStore) Get(_ context.Context, userID, workspaceID string) (*core.PermissionAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[assignmentKey{userID: userID, workspaceID: workspaceID}]
	if !ok {
		return nil, fmt.Errorf("assignment for user %s in workspace %s: %w", userID, workspaceID, core.ErrNotFound)
	}
	cp := *a
	cp.Permissions = slices.Clone(a.Permissions)
	return &cp, nil
}

func (s *InMemoryPermissionStore) ListByWorkspace(_ context.Context, workspaceID string) ([]*core.PermissionAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.PermissionAssignment
	for key, a := range s.assignments {
		if key.workspaceID != workspaceID {
			continue
		}
		cp := *a
		cp.Permissions = slices.Clone(a.Permissions)
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *core.PermissionAssignment) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return out, nil
}
