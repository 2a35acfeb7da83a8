package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/adgate/adgate/internal/core"
)

var _ core.PermissionStore = (*PermissionRepo)(nil)

// PermissionRepo is the SQLite implementation of the PermissionStore port.
// The permission set is stored as a JSON array in a single row per
// (user, workspace) pair; the primary key enforces the single-row invariant.
type PermissionRepo struct {
	db *DB
}

func NewPermissionRepo(db *DB) *PermissionRepo {
	return &PermissionRepo{db: db}
}

// Assign upserts the identifiers into the pair's set. The read-modify-write
// runs in a transaction on the single writer connection.
func (r *PermissionRepo) Assign(ctx context.Context, userID, workspaceID string, permissions ...string) (*core.PermissionAssignment, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin assign: %w", err)
	}
	defer tx.Rollback()

	assignment, err := getAssignment(ctx, tx, userID, workspaceID)
	now := time.Now()
	switch {
	case errors.Is(err, core.ErrNotFound):
		assignment = &core.PermissionAssignment{
			UserID:      userID,
			WorkspaceID: workspaceID,
			CreatedAt:   now,
		}
	case err != nil:
		return nil, err
	}

	for _, p := range permissions {
		if !assignment.Has(p) {
			assignment.Permissions = append(assignment.Permissions, p)
		}
	}
	assignment.UpdatedAt = now

	if err := upsertAssignment(ctx, tx, assignment); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assign: %w", err)
	}
	return assignment, nil
}

func (r *PermissionRepo) Remove(ctx context.Context, userID, workspaceID string, permissions ...string) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove: %w", err)
	}
	defer tx.Rollback()

	assignment, err := getAssignment(ctx, tx, userID, workspaceID)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	assignment.Permissions = slices.DeleteFunc(assignment.Permissions, func(p string) bool {
		return slices.Contains(permissions, p)
	})

	if len(assignment.Permissions) == 0 {
		if err := deleteAssignment(ctx, tx, userID, workspaceID); err != nil {
			return err
		}
	} else {
		assignment.UpdatedAt = time.Now()
		if err := upsertAssignment(ctx, tx, assignment); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove: %w", err)
	}
	return nil
}

func (r *PermissionRepo) RemoveAll(ctx context.Context, userID, workspaceID string) error {
	const query = `DELETE FROM permission_assignments WHERE user_id = ? AND workspace_id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, userID, workspaceID); err != nil {
		return fmt.Errorf("remove all permissions for (%s, %s): %w", userID, workspaceID, err)
	}
	return nil
}

func (r *PermissionRepo) Get(ctx context.Context, userID, workspaceID string) (*core.PermissionAssignment, error) {
	return getAssignment(ctx, r.db.Reader, userID, workspaceID)
}

func (r *PermissionRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]*core.PermissionAssignment, error) {
	const query = `SELECT user_id, permissions, created_at, updated_at
		FROM permission_assignments WHERE workspace_id = ? ORDER BY user_id`
	rows, err := r.db.Reader.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list assignments for workspace %q: %w", workspaceID, err)
	}
	defer rows.Close()

	var assignments []*core.PermissionAssignment
	for rows.Next() {
		var (
			rawPermissions       string
			createdAt, updatedAt string
		)
		a := &core.PermissionAssignment{WorkspaceID: workspaceID}
		if err := rows.Scan(&a.UserID, &rawPermissions, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		if err := json.Unmarshal([]byte(rawPermissions), &a.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions for (%s, %s): %w", a.UserID, workspaceID, err)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return assignments, nil
}

// querier covers *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getAssignment(ctx context.Context, q querier, userID, workspaceID string) (*core.PermissionAssignment, error) {
	const query = `SELECT permissions, created_at, updated_at
		FROM permission_assignments WHERE user_id = ? AND workspace_id = ?`

	var (
		rawPermissions       string
		createdAt, updatedAt string
	)
	err := q.QueryRowContext(ctx, query, userID, workspaceID).
		Scan(&rawPermissions, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assignment for user %q in workspace %q: %w", userID, workspaceID, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment (%s, %s): %w", userID, workspaceID, err)
	}

	assignment := &core.PermissionAssignment{
		UserID:      userID,
		WorkspaceID: workspaceID,
	}
	if err := json.Unmarshal([]byte(rawPermissions), &assignment.Permissions); err != nil {
		return nil, fmt.Errorf("decode permissions for (%s, %s): %w", userID, workspaceID, err)
	}
	if assignment.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if assignment.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return assignment, nil
}

func upsertAssignment(ctx context.Context, q querier, a *core.PermissionAssignment) error {
	raw, err := json.Marshal(a.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}

	const query = `INSERT INTO permission_assignments (user_id, workspace_id, permissions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, workspace_id) DO UPDATE SET permissions = excluded.permissions, updated_at = excluded.updated_at`
	_, err = q.ExecContext(ctx, query,
		a.UserID, a.WorkspaceID, string(raw), formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert assignment (%s, %s): %w", a.UserID, a.WorkspaceID, err)
	}
	return nil
}

func deleteAssignment(ctx context.Context, q querier, userID, workspaceID string) error {
	const query = `DELETE FROM permission_assignments WHERE user_id = ? AND workspace_id = ?`
	if _, err := q.ExecContext(ctx, query, userID, workspaceID); err != nil {
		return fmt.Errorf("delete assignment (%s, %s): %w", userID, workspaceID, err)
	}
	return nil
}
