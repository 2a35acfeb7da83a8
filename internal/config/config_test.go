package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  admin_signing_key: "test-key"
  provider_timeout: 5s
storage:
  type: sqlite
  path: /tmp/adgate.db
identity:
  - name: corp-sso
    type: oidc
    issuer_url: https://sso.example.com
    client_id: adgate
platforms:
  - name: meta
    type: oauth2
    auth_url: https://auth.example.com/authorize
    token_url: https://auth.example.com/token
    client_id: client-1
    client_secret: secret-1
audit:
  enabled: true
  type: file
  path: /tmp/audit.log
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ProviderTimeout != 5*time.Second {
		t.Errorf("provider timeout = %v", cfg.Server.ProviderTimeout)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.Path != "/tmp/adgate.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}

	// inline fields land in the issuer's Config map
	if len(cfg.Identity) != 1 {
		t.Fatalf("identity issuers = %d, want 1", len(cfg.Identity))
	}
	if got := cfg.Identity[0].Config["issuer_url"]; got != "https://sso.example.com" {
		t.Errorf("issuer_url = %v", got)
	}
	if len(cfg.Platforms) != 1 {
		t.Fatalf("platforms = %d, want 1", len(cfg.Platforms))
	}
	wantPlatform := PlatformConfig{
		Name: "meta",
		Type: "oauth2",
		Config: map[string]any{
			"auth_url":      "https://auth.example.com/authorize",
			"token_url":     "https://auth.example.com/token",
			"client_id":     "client-1",
			"client_secret": "secret-1",
		},
	}
	if diff := cmp.Diff(wantPlatform, cfg.Platforms[0]); diff != "" {
		t.Errorf("platform mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("default addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Server.ProviderTimeout != 15*time.Second {
		t.Errorf("default provider timeout = %v, want 15s", cfg.Server.ProviderTimeout)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("default storage = %q, want memory", cfg.Storage.Type)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() of a missing file must fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr bool
	}{
		{
			name:    "sqlite without path",
			config:  "storage:\n  type: sqlite\n",
			wantErr: true,
		},
		{
			name:    "unknown storage type",
			config:  "storage:\n  type: postgres\n",
			wantErr: true,
		},
		{
			name:    "duplicate platform names",
			config:  "platforms:\n  - name: meta\n    type: stub\n  - name: meta\n    type: stub\n",
			wantErr: true,
		},
		{
			name:    "duplicate issuer names",
			config:  "identity:\n  - name: sso\n    type: static\n  - name: sso\n    type: static\n",
			wantErr: true,
		},
		{
			name:    "platform without name",
			config:  "platforms:\n  - type: stub\n",
			wantErr: true,
		},
		{
			name:    "file audit without path",
			config:  "audit:\n  enabled: true\n  type: file\n",
			wantErr: true,
		},
		{
			name:   "disabled audit needs no path",
			config: "audit:\n  enabled: false\n  type: file\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.config))
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
