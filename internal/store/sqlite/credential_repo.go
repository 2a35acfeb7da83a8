package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adgate/adgate/internal/core"
)

var _ core.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
type CredentialRepo struct {
	db *DB
}

func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

const credentialColumns = `id, principal_id, platform, status, access_token, refresh_token,
	expires_at, scope, last_used_at, usage_count, version, created_at, updated_at`

// Save inserts a new credential. Inside the same transaction, a prior active
// credential of the same principal is superseded (moved to expired) so the
// one-active-per-principal index never rejects the insert.
func (r *CredentialRepo) Save(ctx context.Context, cred *core.Credential) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save credential: %w", err)
	}
	defer tx.Rollback()

	if cred.Status == core.StatusActive {
		const supersede = `UPDATE credentials
			SET status = 'expired', version = version + 1, updated_at = ?
			WHERE principal_id = ? AND status = 'active'`
		if _, err := tx.ExecContext(ctx, supersede, formatTime(time.Now()), cred.PrincipalID); err != nil {
			return fmt.Errorf("supersede active credential for %q: %w", cred.PrincipalID, err)
		}
	}

	const insert = `INSERT INTO credentials (` + credentialColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, insert,
		cred.ID, cred.PrincipalID, cred.Platform, string(cred.Status),
		cred.AccessToken, cred.RefreshToken,
		formatNullTime(cred.ExpiresAt), cred.Scope, formatNullTime(cred.LastUsedAt),
		cred.UsageCount, cred.Version,
		formatTime(cred.CreatedAt), formatTime(cred.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert credential %q: %w", cred.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save credential: %w", err)
	}
	return nil
}

func (r *CredentialRepo) GetByID(ctx context.Context, id string) (*core.Credential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM credentials WHERE id = ?`
	cred, err := scanCredential(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %q: %w", id, err)
	}
	return cred, nil
}

func (r *CredentialRepo) GetActive(ctx context.Context, principalID string) (*core.Credential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM credentials
		WHERE principal_id = ? AND status = 'active'`
	cred, err := scanCredential(r.db.Reader.QueryRowContext(ctx, query, principalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("active credential for principal %q: %w", principalID, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get active credential for %q: %w", principalID, err)
	}
	return cred, nil
}

// Update applies an optimistic write: it only succeeds when the stored
// version still matches the version the caller read.
func (r *CredentialRepo) Update(ctx context.Context, cred *core.Credential) error {
	const query = `UPDATE credentials
		SET status = ?, access_token = ?, refresh_token = ?, expires_at = ?, scope = ?,
			last_used_at = ?, usage_count = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?`

	res, err := r.db.Writer.ExecContext(ctx, query,
		string(cred.Status), cred.AccessToken, cred.RefreshToken,
		formatNullTime(cred.ExpiresAt), cred.Scope, formatNullTime(cred.LastUsedAt),
		cred.UsageCount, cred.Version, formatTime(time.Now()),
		cred.ID, cred.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update credential %q: %w", cred.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential %q: %w", cred.ID, err)
	}
	if affected == 0 {
		// distinguish a lost race from a missing row
		var exists int
		err := r.db.Reader.QueryRowContext(ctx,
			`SELECT 1 FROM credentials WHERE id = ?`, cred.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("credential %q: %w", cred.ID, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("update credential %q: %w", cred.ID, err)
		}
		return fmt.Errorf("credential %q: %w", cred.ID, core.ErrVersionConflict)
	}
	return nil
}

func (r *CredentialRepo) ListByPrincipal(ctx context.Context, principalID string) ([]*core.Credential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM credentials
		WHERE principal_id = ? ORDER BY created_at DESC`
	rows, err := r.db.Reader.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("list credentials for %q: %w", principalID, err)
	}
	defer rows.Close()

	var creds []*core.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

func (r *CredentialRepo) ListAll(ctx context.Context) ([]*core.Credential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM credentials ORDER BY created_at DESC`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*core.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*core.Credential, error) {
	var (
		cred                  core.Credential
		status                string
		expiresAt, lastUsedAt sql.NullString
		createdAt, updatedAt  string
	)
	err := row.Scan(
		&cred.ID, &cred.PrincipalID, &cred.Platform, &status,
		&cred.AccessToken, &cred.RefreshToken,
		&expiresAt, &cred.Scope, &lastUsedAt,
		&cred.UsageCount, &cred.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	cred.Status = core.CredentialStatus(status)
	if cred.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return nil, err
	}
	if cred.LastUsedAt, err = parseNullTime(lastUsedAt); err != nil {
		return nil, err
	}
	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &cred, nil
}
