package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adgate/adgate/internal/core"
)

// StubGateway is a gateway that accepts everything. Useful for local
// development and wiring tests without a real platform.
type StubGateway struct {
	name string
}

func NewStubGateway(name string) *StubGateway {
	return &StubGateway{name: name}
}

func (s *StubGateway) Platform() string {
	return s.name
}

func (s *StubGateway) AuthURL(state string) string {
	return fmt.Sprintf("https://auth.%s.invalid/authorize?state=%s", s.name, state)
}

func (s *StubGateway) ExchangeCode(ctx context.Context, code string) (*core.TokenGrant, error) {
	log.Ctx(ctx).Info().
		Str("platform", s.name).
		Msg("StubGateway ExchangeCode called")
	return &core.TokenGrant{
		AccessToken:  fmt.Sprintf("adgate_stub_access_%s", code),
		RefreshToken: fmt.Sprintf("adgate_stub_refresh_%s", code),
		ExpiresIn:    1 * time.Hour,
		Scope:        "ads_read ads_management",
	}, nil
}

func (s *StubGateway) Refresh(ctx context.Context, refreshToken string) (*core.TokenGrant, error) {
	log.Ctx(ctx).Info().
		Str("platform", s.name).
		Msg("StubGateway Refresh called")
	return &core.TokenGrant{
		AccessToken:  fmt.Sprintf("adgate_stub_refreshed_%d", time.Now().UnixNano()),
		RefreshToken: refreshToken,
		ExpiresIn:    1 * time.Hour,
	}, nil
}

func (s *StubGateway) Revoke(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (s *StubGateway) Validate(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (s *StubGateway) VerifyDelegatedAccess(_ context.Context, _, _ string) (bool, error) {
	return true, nil
}
