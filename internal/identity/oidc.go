package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/adgate/adgate/internal/config"
)

type OIDCVerifier struct {
	name      string
	issuerURL string
	provider  *oidc.Provider
	verifier  *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, cfg config.IssuerConfig) (*OIDCVerifier, error) {
	issuerURL, ok := cfg.Config["issuer_url"].(string)
	if !ok {
		return nil, fmt.Errorf("oidc verifier '%s' missing 'issuer_url'", cfg.Name)
	}
	clientID, ok := cfg.Config["client_id"].(string)
	if !ok {
		return nil, fmt.Errorf("oidc verifier '%s' missing 'client_id'", cfg.Name)
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("creating oidc provider for verifier '%s': %w", cfg.Name, err)
	}

	return &OIDCVerifier{
		name:      cfg.Name,
		issuerURL: issuerURL,
		provider:  provider,
		verifier:  provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (o *OIDCVerifier) Name() string {
	return o.name
}

func (o *OIDCVerifier) IssuerURL() string {
	return o.issuerURL
}

func (o *OIDCVerifier) Verify(ctx context.Context, token string) (string, error) {
	idToken, err := o.verifier.Verify(ctx, token)
	if err != nil {
		return "", fmt.Errorf("oidc verification failed: %w", err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("extracting oidc claims: %w", err)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("token missing 'sub' claim")
	}
	return sub, nil
}

// ExtractIssuerURL extracts the 'iss' claim from a JWT token string without verifying it.
func ExtractIssuerURL(tokenString string) (string, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	issRaw, ok := claims["iss"]
	if !ok {
		return "", fmt.Errorf("token missing 'iss' claim")
	}

	iss, ok := issRaw.(string)
	if !ok {
		return "", fmt.Errorf("invalid 'iss' claim type")
	}

	return iss, nil
}
