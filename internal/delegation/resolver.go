// Package delegation decides whose credential is used for platform calls
// made on behalf of a managed account: the account's own, or a linked
// agency's after a verified access grant.
package delegation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adgate/adgate/internal/core"
	"github.com/adgate/adgate/internal/correlation"
	"github.com/adgate/adgate/internal/platform"
	"github.com/adgate/adgate/internal/token"
)

// Resolver resolves delegation-aware access tokens and manages agency links.
type Resolver struct {
	links      core.DelegationStore
	principals core.PrincipalStore
	tokens     *token.Manager
	gateways   *platform.Registry
	auditor    core.Auditor
	now        core.Clock
}

func NewResolver(
	links core.DelegationStore,
	principals core.PrincipalStore,
	tokens *token.Manager,
	gateways *platform.Registry,
	auditor core.Auditor,
) *Resolver {
	return &Resolver{
		links:      links,
		principals: principals,
		tokens:     tokens,
		gateways:   gateways,
		auditor:    auditor,
		now:        time.Now,
	}
}

// ResolveToken returns the access token to use for platform calls made as
// the given account. A linked agency's credential takes precedence over the
// account's own.
func (r *Resolver) ResolveToken(ctx context.Context, accountID string) (*core.ResolvedToken, error) {
	link, err := r.links.GetLink(ctx, accountID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}

		accessToken, err := r.tokens.GetValidToken(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return &core.ResolvedToken{AccessToken: accessToken}, nil
	}

	accessToken, err := r.tokens.GetValidToken(ctx, link.AgencyID)
	if err != nil {
		return nil, fmt.Errorf("resolving delegated token via agency %s: %w", link.AgencyID, err)
	}

	log.Ctx(ctx).Debug().
		Str("account_id", accountID).
		Str("agency_id", link.AgencyID).
		Msg("resolved delegated token")

	return &core.ResolvedToken{
		AccessToken: accessToken,
		Delegated:   true,
		AgencyID:    link.AgencyID,
	}, nil
}

// Link connects a managed account to an agency. The link is only created
// after the platform confirmed the agency's access to the account's external
// resource; an agency must never gain control of an account it was not
// granted rights to upstream.
func (r *Resolver) Link(ctx context.Context, accountID, agencyID, requestingUserID string) (*core.DelegationLink, error) {
	account, err := r.principals.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	agency, err := r.principals.GetByID(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("looking up agency: %w", err)
	}

	if agency.Kind != core.KindAgency {
		return nil, fmt.Errorf("principal %s is not an agency: %w", agencyID, core.ErrDelegationNotVerified)
	}
	if account.Platform != agency.Platform {
		err := fmt.Errorf("account targets %s, agency targets %s: %w",
			account.Platform, agency.Platform, core.ErrDelegationNotVerified)
		r.auditLink(ctx, account, agencyID, requestingUserID, err)
		return nil, err
	}

	// the agency must hold a usable credential of its own
	agencyToken, err := r.tokens.GetValidToken(ctx, agencyID)
	if err != nil {
		if errors.Is(err, core.ErrCredentialExpired) || errors.Is(err, core.ErrNotFound) {
			err = fmt.Errorf("agency %s holds no active credential: %w", agencyID, core.ErrDelegationNotVerified)
		}
		r.auditLink(ctx, account, agencyID, requestingUserID, err)
		return nil, err
	}

	gw, err := r.gateways.Get(account.Platform)
	if err != nil {
		return nil, err
	}

	// verify the grant on the platform, against the account's external
	// resource, not just the agency's existence
	verified, err := gw.VerifyDelegatedAccess(ctx, agencyToken, account.ExternalID)
	if err != nil {
		r.auditLink(ctx, account, agencyID, requestingUserID, err)
		return nil, err
	}
	if !verified {
		err := fmt.Errorf("platform denied agency %s access to resource %s: %w",
			agencyID, account.ExternalID, core.ErrDelegationNotVerified)
		r.auditLink(ctx, account, agencyID, requestingUserID, err)
		return nil, err
	}

	link := &core.DelegationLink{
		AccountID: accountID,
		AgencyID:  agencyID,
		Platform:  account.Platform,
		LinkedBy:  requestingUserID,
		CreatedAt: r.now(),
	}
	if err := r.links.SaveLink(ctx, link); err != nil {
		return nil, fmt.Errorf("persisting delegation link: %w", err)
	}

	r.auditLink(ctx, account, agencyID, requestingUserID, nil)

	log.Ctx(ctx).Info().
		Str("account_id", accountID).
		Str("agency_id", agencyID).
		Str("platform", account.Platform).
		Msg("account linked to agency")

	return link, nil
}

// Unlink removes the account's agency link; subsequent resolutions fall back
// to the account's own credential.
func (r *Resolver) Unlink(ctx context.Context, accountID, requestingUserID string) error {
	if err := r.links.DeleteLink(ctx, accountID); err != nil {
		return err
	}

	r.auditEntry(ctx, core.AuditEntry{
		Action:      "delegation.unlink",
		ActorID:     requestingUserID,
		PrincipalID: accountID,
		Granted:     true,
	})

	log.Ctx(ctx).Info().
		Str("account_id", accountID).
		Msg("account unlinked from agency")
	return nil
}

func (r *Resolver) auditLink(ctx context.Context, account *core.Principal, agencyID, actorID string, opErr error) {
	entry := core.AuditEntry{
		Action:      "delegation.link",
		ActorID:     actorID,
		PrincipalID: account.ID,
		Platform:    account.Platform,
		Granted:     opErr == nil,
		Metadata: map[string]any{
			"agency_id":   agencyID,
			"external_id": account.ExternalID,
		},
	}
	if opErr != nil {
		entry.Error = opErr.Error()
	}
	r.auditEntry(ctx, entry)
}

func (r *Resolver) auditEntry(ctx context.Context, entry core.AuditEntry) {
	entry.ID = correlation.FromContext(ctx)
	if entry.Time.IsZero() {
		entry.Time = r.now()
	}
	if err := r.auditor.Log(entry); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to write audit log entry")
	}
}
