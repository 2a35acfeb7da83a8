package platform

import (
	"fmt"
	"time"

	"github.com/adgate/adgate/internal/config"
	"github.com/adgate/adgate/internal/core"
)

// Registry holds the gateway for every configured platform, built once at
// startup. Lookups for platforms without a gateway fail closed with
// core.ErrUnsupportedPlatform.
type Registry struct {
	gateways map[string]core.ProviderGateway
}

func BuildRegistry(cfgs []config.PlatformConfig, timeout time.Duration) (*Registry, error) {
	gateways := make(map[string]core.ProviderGateway)
	for _, cfg := range cfgs {
		switch cfg.Type {
		case "stub":
			gateways[cfg.Name] = NewStubGateway(cfg.Name)
		case "oauth2":
			gw, err := NewOAuthGateway(cfg, timeout)
			if err != nil {
				return nil, fmt.Errorf("building oauth2 gateway %q: %w", cfg.Name, err)
			}
			gateways[cfg.Name] = gw
		default:
			return nil, fmt.Errorf("unknown platform type %q for platform %q", cfg.Type, cfg.Name)
		}
	}
	return &Registry{gateways: gateways}, nil
}

// NewRegistry builds a registry from ready-made gateways (used by tests).
func NewRegistry(gateways ...core.ProviderGateway) *Registry {
	m := make(map[string]core.ProviderGateway, len(gateways))
	for _, gw := range gateways {
		m[gw.Platform()] = gw
	}
	return &Registry{gateways: m}
}

// Get returns the gateway for the platform tag.
func (r *Registry) Get(platform string) (core.ProviderGateway, error) {
	gw, ok := r.gateways[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedPlatform, platform)
	}
	return gw, nil
}

// Platforms returns the configured platform tags.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	return names
}
