package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Storage   StorageConfig    `yaml:"storage"`
	Identity  []IssuerConfig   `yaml:"identity"`
	Platforms []PlatformConfig `yaml:"platforms"`
	Audit     AuditConfig      `yaml:"audit"`
}

type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// AdminSigningKey is the HMAC key for admin session tokens.
	AdminSigningKey string `yaml:"admin_signing_key"`

	// ProviderTimeout bounds every outbound platform call.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
}

type StorageConfig struct {
	// Type selects the store backend: "sqlite" or "memory".
	Type string `yaml:"type"`

	// Path is the sqlite database file. Ignored for memory storage.
	Path string `yaml:"path"`
}

// IssuerConfig holds configuration for an identity verifier.
type IssuerConfig struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`    // e.g., "oidc", "static"
	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

// PlatformConfig holds configuration for one advertising platform gateway.
type PlatformConfig struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`    // e.g., "oauth2", "stub"
	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ProviderTimeout <= 0 {
		c.Server.ProviderTimeout = 15 * time.Second
	}

	switch c.Storage.Type {
	case "", "memory":
		c.Storage.Type = "memory"
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage: sqlite requires 'path'")
		}
	default:
		return fmt.Errorf("storage: unknown type %q", c.Storage.Type)
	}

	seenIssuers := make(map[string]struct{})
	for idx, i := range c.Identity {
		if i.Name == "" {
			return fmt.Errorf("identity issuer at index %d has empty name", idx)
		}
		if _, dup := seenIssuers[i.Name]; dup {
			return fmt.Errorf("duplicate identity issuer %q", i.Name)
		}
		seenIssuers[i.Name] = struct{}{}
	}

	seenPlatforms := make(map[string]struct{})
	for idx, p := range c.Platforms {
		if p.Name == "" {
			return fmt.Errorf("platform at index %d has empty name", idx)
		}
		if _, dup := seenPlatforms[p.Name]; dup {
			return fmt.Errorf("duplicate platform %q", p.Name)
		}
		seenPlatforms[p.Name] = struct{}{}
	}

	if c.Audit.Enabled {
		switch c.Audit.Type {
		case "", "memory":
		case "file":
			if c.Audit.Path == "" {
				return fmt.Errorf("audit: file auditor requires 'path'")
			}
		default:
			return fmt.Errorf("audit: unknown type %q", c.Audit.Type)
		}
	}

	return nil
}
