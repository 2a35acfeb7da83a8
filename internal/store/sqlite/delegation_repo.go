package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adgate/adgate/internal/core"
)

var _ core.DelegationStore = (*DelegationRepo)(nil)

// DelegationRepo is the SQLite implementation of the DelegationStore port.
type DelegationRepo struct {
	db *DB
}

func NewDelegationRepo(db *DB) *DelegationRepo {
	return &DelegationRepo{db: db}
}

func (r *DelegationRepo) SaveLink(ctx context.Context, link *core.DelegationLink) error {
	const query = `INSERT OR REPLACE INTO delegation_links (account_id, agency_id, platform, linked_by, created_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		link.AccountID, link.AgencyID, link.Platform, link.LinkedBy, formatTime(link.CreatedAt))
	if err != nil {
		return fmt.Errorf("save delegation link for account %q: %w", link.AccountID, err)
	}
	return nil
}

func (r *DelegationRepo) GetLink(ctx context.Context, accountID string) (*core.DelegationLink, error) {
	const query = `SELECT account_id, agency_id, platform, linked_by, created_at
		FROM delegation_links WHERE account_id = ?`

	var (
		link      core.DelegationLink
		createdAt string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, accountID).
		Scan(&link.AccountID, &link.AgencyID, &link.Platform, &link.LinkedBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("delegation link for account %q: %w", accountID, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get delegation link for %q: %w", accountID, err)
	}

	if link.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("delegation link for %q: %w", accountID, err)
	}
	return &link, nil
}

func (r *DelegationRepo) DeleteLink(ctx context.Context, accountID string) error {
	const query = `DELETE FROM delegation_links WHERE account_id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("delete delegation link for %q: %w", accountID, err)
	}
	return nil
}
