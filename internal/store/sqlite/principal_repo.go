package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adgate/adgate/internal/core"
)

var _ core.PrincipalStore = (*PrincipalRepo)(nil)

// PrincipalRepo is the SQLite implementation of the PrincipalStore port.
type PrincipalRepo struct {
	db *DB
}

func NewPrincipalRepo(db *DB) *PrincipalRepo {
	return &PrincipalRepo{db: db}
}

func (r *PrincipalRepo) Save(ctx context.Context, p *core.Principal) error {
	const query = `INSERT OR REPLACE INTO principals (id, kind, platform, external_id, workspace_id)
		VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		p.ID, string(p.Kind), p.Platform, p.ExternalID, p.WorkspaceID)
	if err != nil {
		return fmt.Errorf("save principal %q: %w", p.ID, err)
	}
	return nil
}

func (r *PrincipalRepo) GetByID(ctx context.Context, id string) (*core.Principal, error) {
	const query = `SELECT id, kind, platform, external_id, workspace_id FROM principals WHERE id = ?`

	var (
		p    core.Principal
		kind string
	)
	err := r.db.Reader.QueryRowContext(ctx, query, id).
		Scan(&p.ID, &kind, &p.Platform, &p.ExternalID, &p.WorkspaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("principal %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get principal %q: %w", id, err)
	}
	p.Kind = core.PrincipalKind(kind)
	return &p, nil
}
