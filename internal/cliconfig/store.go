// Package cliconfig persists admin CLI sessions under ~/.adgate/config.json.
// Sessions are keyed by server host so one config can hold logins for
// several deployments.
package cliconfig

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

var ErrCredentialNotFound = fmt.Errorf("credential not found")

// Credential holds a saved admin session token for one server.
type Credential struct {
	Token string
}

type CLIConfig struct {
	// Credentials maps server host (host:port) to the saved session.
	Credentials map[string]*Credential
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home directory: %w", err)
	}
	return filepath.Join(home, ".adgate", "config.json"), nil
}

// Load reads the config file. A missing file surfaces as os.ErrNotExist so
// callers can treat it as "no saved sessions".
func Load() (*CLIConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file '%s': %w", path, err)
	}

	var cfg CLIConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config file '%s': %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config atomically enough for a single-user CLI: the
// directory is 0700 and the file 0600 because it stores session tokens.
func Save(cfg *CLIConfig) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory '%s': %w", dir, err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("writing config file '%s': %w", path, err)
	}
	return nil
}

// SetCredential stores a session token under the server's host key.
func (c *CLIConfig) SetCredential(server, token string) error {
	host, err := hostKey(server)
	if err != nil {
		return err
	}
	if c.Credentials == nil {
		c.Credentials = make(map[string]*Credential)
	}
	c.Credentials[host] = &Credential{Token: token}
	return nil
}

func (c *CLIConfig) GetCredential(server string) (*Credential, error) {
	host, err := hostKey(server)
	if err != nil {
		return nil, err
	}
	cred, ok := c.Credentials[host]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return cred, nil
}

func hostKey(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parsing server URL '%s': %w", server, err)
	}
	return u.Host, nil
}
