package identity

import (
	"context"
	"fmt"

	"github.com/adgate/adgate/internal/config"
)

// StaticVerifier maps fixed tokens to user ids. Intended for local
// development and tests only.
type StaticVerifier struct {
	name     string
	tokenMap map[string]string // token -> user id
}

func NewStaticVerifier(cfg config.IssuerConfig) (*StaticVerifier, error) {
	rawMap, ok := cfg.Config["token_map"].(map[string]any)
	if !ok {
		// no map provided: empty verifier that always fails verification
		return &StaticVerifier{name: cfg.Name}, nil
	}

	tokenMap := make(map[string]string)
	for token, userRaw := range rawMap {
		tokenMap[token] = fmt.Sprint(userRaw)
	}

	return &StaticVerifier{
		name:     cfg.Name,
		tokenMap: tokenMap,
	}, nil
}

// NewStaticTokens builds a verifier directly from a token -> user map.
func NewStaticTokens(name string, tokens map[string]string) *StaticVerifier {
	return &StaticVerifier{name: name, tokenMap: tokens}
}

func (s *StaticVerifier) Name() string {
	return s.name
}

func (s *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	userID, ok := s.tokenMap[token]
	if !ok {
		return "", fmt.Errorf("unknown token")
	}
	return userID, nil
}
