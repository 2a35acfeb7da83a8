// Package identity resolves the acting user from inbound credentials. It is
// the "resolveUser" collaborator of the authorization layer: verification
// failures surface as core.ErrAuthenticationRequired at the API boundary.
package identity

import (
	"context"
	"fmt"

	"github.com/adgate/adgate/internal/config"
	"github.com/adgate/adgate/internal/core"
)

// Verifier validates an inbound bearer token and returns the user identity.
type Verifier interface {
	// Name returns the identifier of this verifier (as used in config).
	Name() string

	// Verify takes a raw token string, validates it, and returns the user id.
	Verify(ctx context.Context, token string) (string, error)
}

// Registry holds the configured identity verifiers.
type Registry struct {
	verifiers map[string]Verifier
	issuerURL map[string]Verifier // OIDC 'iss' claim -> verifier
}

func BuildRegistry(ctx context.Context, cfgs []config.IssuerConfig) (*Registry, error) {
	reg := &Registry{
		verifiers: make(map[string]Verifier),
		issuerURL: make(map[string]Verifier),
	}
	for _, cfg := range cfgs {
		switch cfg.Type {
		case "static":
			v, err := NewStaticVerifier(cfg)
			if err != nil {
				return nil, fmt.Errorf("building static verifier %q: %w", cfg.Name, err)
			}
			reg.verifiers[cfg.Name] = v
		case "oidc":
			v, err := NewOIDCVerifier(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("building oidc verifier %q: %w", cfg.Name, err)
			}
			reg.verifiers[cfg.Name] = v
			reg.issuerURL[v.IssuerURL()] = v
		default:
			return nil, fmt.Errorf("unknown identity verifier type %q for %q", cfg.Type, cfg.Name)
		}
	}
	return reg, nil
}

// NewRegistry builds a registry from ready-made verifiers (used by tests).
func NewRegistry(verifiers ...Verifier) *Registry {
	reg := &Registry{
		verifiers: make(map[string]Verifier),
		issuerURL: make(map[string]Verifier),
	}
	for _, v := range verifiers {
		reg.verifiers[v.Name()] = v
	}
	return reg
}

func (r *Registry) Get(name string) (Verifier, bool) {
	v, ok := r.verifiers[name]
	return v, ok
}

// Resolve verifies the token against the matching verifier: a JWT with a
// known 'iss' claim goes to its OIDC verifier, anything else is tried
// against every static verifier.
func (r *Registry) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", core.ErrAuthenticationRequired
	}

	if issuerURL, err := ExtractIssuerURL(token); err == nil {
		if v, ok := r.issuerURL[issuerURL]; ok {
			userID, err := v.Verify(ctx, token)
			if err != nil {
				return "", fmt.Errorf("verifying token against %s: %w", v.Name(), core.ErrAuthenticationRequired)
			}
			return userID, nil
		}
	}

	for _, v := range r.verifiers {
		if userID, err := v.Verify(ctx, token); err == nil {
			return userID, nil
		}
	}
	return "", core.ErrAuthenticationRequired
}
