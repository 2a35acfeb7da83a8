package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/adgate/adgate/internal/config"
	"github.com/adgate/adgate/internal/core"
)

// maxResponseBytes limits platform responses to prevent unbounded reads from
// a misbehaving endpoint.
const maxResponseBytes = 1 << 20 // 1 MB

type oauthSettings struct {
	AuthURL       string `mapstructure:"auth_url"`
	TokenURL      string `mapstructure:"token_url"`
	RevokeURL     string `mapstructure:"revoke_url"`
	ValidateURL   string `mapstructure:"validate_url"`
	DelegationURL string `mapstructure:"delegation_url"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	RedirectURI   string `mapstructure:"redirect_uri"`
	Scopes        string `mapstructure:"scopes"`
}

// OAuthGateway talks to an advertising platform that implements a standard
// OAuth code flow plus a delegated-access check endpoint. It holds no token
// state: every call takes the token as a parameter.
type OAuthGateway struct {
	name     string
	settings oauthSettings
	client   *http.Client
}

func NewOAuthGateway(cfg config.PlatformConfig, timeout time.Duration) (*OAuthGateway, error) {
	var settings oauthSettings
	if err := mapstructure.Decode(cfg.Config, &settings); err != nil {
		return nil, fmt.Errorf("decoding oauth2 settings: %w", err)
	}
	if settings.AuthURL == "" || settings.TokenURL == "" {
		return nil, fmt.Errorf("oauth2 platform %q requires 'auth_url' and 'token_url'", cfg.Name)
	}
	if settings.ClientID == "" || settings.ClientSecret == "" {
		return nil, fmt.Errorf("oauth2 platform %q requires 'client_id' and 'client_secret'", cfg.Name)
	}

	// dedicated client: platform calls must not inherit a patched default transport
	return &OAuthGateway{
		name:     cfg.Name,
		settings: settings,
		client: &http.Client{
			Transport: &http.Transport{},
			Timeout:   timeout,
		},
	}, nil
}

func (g *OAuthGateway) Platform() string {
	return g.name
}

func (g *OAuthGateway) AuthURL(state string) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {g.settings.ClientID},
		"state":         {state},
	}
	if g.settings.RedirectURI != "" {
		q.Set("redirect_uri", g.settings.RedirectURI)
	}
	if g.settings.Scopes != "" {
		q.Set("scope", g.settings.Scopes)
	}
	return g.settings.AuthURL + "?" + q.Encode()
}

func (g *OAuthGateway) ExchangeCode(ctx context.Context, code string) (*core.TokenGrant, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {g.settings.ClientID},
		"client_secret": {g.settings.ClientSecret},
	}
	if g.settings.RedirectURI != "" {
		data.Set("redirect_uri", g.settings.RedirectURI)
	}
	return g.tokenRequest(ctx, "exchange", data)
}

func (g *OAuthGateway) Refresh(ctx context.Context, refreshToken string) (*core.TokenGrant, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {g.settings.ClientID},
		"client_secret": {g.settings.ClientSecret},
	}
	return g.tokenRequest(ctx, "refresh", data)
}

// tokenResponse is the wire shape of the platform's token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

func (g *OAuthGateway) tokenRequest(ctx context.Context, op string, data url.Values) (*core.TokenGrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.settings.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, core.NewProviderError(g.name, op, false, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		// network errors and timeouts are transient from our point of view
		return nil, core.NewProviderError(g.name, op, true, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, core.NewProviderError(g.name, op, true, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode >= 500 {
		return nil, core.NewProviderError(g.name, op, true,
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		// a definitive platform answer, e.g. invalid_grant
		return nil, core.NewProviderError(g.name, op, false,
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, core.NewProviderError(g.name, op, true, fmt.Errorf("parsing response: %w", err))
	}
	if tr.AccessToken == "" {
		return nil, core.NewProviderError(g.name, op, false, fmt.Errorf("no access_token in response"))
	}

	return &core.TokenGrant{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    time.Duration(tr.ExpiresIn) * time.Second,
		Scope:        tr.Scope,
	}, nil
}

// Revoke returns true only when the platform confirmed the revocation.
// Transient failures surface as retryable ProviderErrors so the caller never
// marks a credential revoked on ambiguous answers.
func (g *OAuthGateway) Revoke(ctx context.Context, accessToken string) (bool, error) {
	if g.settings.RevokeURL == "" {
		return false, core.NewProviderError(g.name, "revoke", false, fmt.Errorf("platform has no revocation endpoint"))
	}

	data := url.Values{
		"token":         {accessToken},
		"client_id":     {g.settings.ClientID},
		"client_secret": {g.settings.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.settings.RevokeURL, strings.NewReader(data.Encode()))
	if err != nil {
		return false, core.NewProviderError(g.name, "revoke", false, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return false, core.NewProviderError(g.name, "revoke", true, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	switch {
	case resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode >= 500:
		return false, core.NewProviderError(g.name, "revoke", true, fmt.Errorf("HTTP %d", resp.StatusCode))
	default:
		return false, core.NewProviderError(g.name, "revoke", false, fmt.Errorf("HTTP %d", resp.StatusCode))
	}
}

func (g *OAuthGateway) Validate(ctx context.Context, accessToken string) (bool, error) {
	if g.settings.ValidateURL == "" {
		return false, core.NewProviderError(g.name, "validate", false, fmt.Errorf("platform has no validation endpoint"))
	}
	return g.bearerCheck(ctx, "validate", g.settings.ValidateURL, accessToken)
}

// VerifyDelegatedAccess checks that the agency token can reach the external
// resource. The platform answers 2xx when access has been granted and
// 403/404 when it has not.
func (g *OAuthGateway) VerifyDelegatedAccess(ctx context.Context, agencyToken, externalResourceID string) (bool, error) {
	if g.settings.DelegationURL == "" {
		return false, core.NewProviderError(g.name, "verify_delegation", false, fmt.Errorf("platform has no delegation endpoint"))
	}
	target := g.settings.DelegationURL + "?" + url.Values{"resource_id": {externalResourceID}}.Encode()
	return g.bearerCheck(ctx, "verify_delegation", target, agencyToken)
}

func (g *OAuthGateway) bearerCheck(ctx context.Context, op, target, token string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, core.NewProviderError(g.name, op, false, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return false, core.NewProviderError(g.name, op, true, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	switch {
	case resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 500:
		return false, core.NewProviderError(g.name, op, true, fmt.Errorf("HTTP %d", resp.StatusCode))
	default:
		return false, core.NewProviderError(g.name, op, false, fmt.Errorf("HTTP %d", resp.StatusCode))
	}
}
