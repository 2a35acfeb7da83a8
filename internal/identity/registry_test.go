package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/adgate/adgate/internal/config"
	"github.com/adgate/adgate/internal/core"
)

func TestStaticVerifier(t *testing.T) {
	v, err := NewStaticVerifier(config.IssuerConfig{
		Name: "dev",
		Type: "static",
		Config: map[string]any{
			"token_map": map[string]any{
				"token-alice": "alice",
				"token-bob":   "bob",
			},
		},
	})
	if err != nil {
		t.Fatalf("NewStaticVerifier() error = %v", err)
	}

	userID, err := v.Verify(context.Background(), "token-alice")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if userID != "alice" {
		t.Errorf("user = %q, want alice", userID)
	}

	if _, err := v.Verify(context.Background(), "unknown"); err == nil {
		t.Error("Verify() accepted an unknown token")
	}
}

func TestStaticVerifier_NoTokenMap(t *testing.T) {
	v, err := NewStaticVerifier(config.IssuerConfig{Name: "empty", Type: "static"})
	if err != nil {
		t.Fatalf("NewStaticVerifier() error = %v", err)
	}
	if _, err := v.Verify(context.Background(), "anything"); err == nil {
		t.Error("an empty verifier must reject every token")
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry(
		NewStaticTokens("first", map[string]string{"token-a": "alice"}),
		NewStaticTokens("second", map[string]string{"token-b": "bob"}),
	)

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{"token of the first verifier", "token-a", "alice", false},
		{"token of the second verifier", "token-b", "bob", false},
		{"unknown token", "token-x", "", true},
		{"empty token", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Resolve(context.Background(), tt.token)
			if tt.wantErr {
				if !errors.Is(err, core.ErrAuthenticationRequired) {
					t.Fatalf("Resolve() error = %v, want ErrAuthenticationRequired", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildRegistry(t *testing.T) {
	reg, err := BuildRegistry(context.Background(), []config.IssuerConfig{
		{
			Name: "dev",
			Type: "static",
			Config: map[string]any{
				"token_map": map[string]any{"token-a": "alice"},
			},
		},
	})
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	if _, ok := reg.Get("dev"); !ok {
		t.Error("verifier dev not registered")
	}

	_, err = BuildRegistry(context.Background(), []config.IssuerConfig{
		{Name: "x", Type: "bogus"},
	})
	if err == nil {
		t.Error("BuildRegistry() accepted an unknown verifier type")
	}
}
