// Package assignments manages which users hold which roles. Revocation is
// soft: rows keep their audit trail and only flip inactive.
package assignments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborvet/harborvet/internal/authz"
	"github.com/harborvet/harborvet/internal/shared"
)

// Repository provides PostgreSQL backed persistence for role assignments.
// It implements authz.AssignmentStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectAssignments = `
SELECT a.id, a.user_id, a.role_id, a.assigned_at, a.assigned_by, a.is_active, a.revoked_at, a.revoked_by
FROM role_assignments a`

// GetActiveAssignments returns active assignments for the user, narrowed to
// system roles plus the given practice when one is set.
func (r *Repository) GetActiveAssignments(ctx context.Context, userID string, practiceID *int64) ([]authz.RoleAssignment, error) {
	query := selectAssignments + `
JOIN roles ro ON ro.id = a.role_id
WHERE a.user_id = $1 AND a.is_active AND ro.practice_id IS NULL`
	args := []any{userID}
	if practiceID != nil {
		query = selectAssignments + `
JOIN roles ro ON ro.id = a.role_id
WHERE a.user_id = $1 AND a.is_active AND (ro.practice_id IS NULL OR ro.practice_id = $2)`
		args = append(args, *practiceID)
	}
	query += ` ORDER BY a.assigned_at, a.id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("assignments: query: %w", err)
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// ListForUser returns every assignment of a user, revoked ones included,
// for the administration screens.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]authz.RoleAssignment, error) {
	rows, err := r.pool.Query(ctx, selectAssignments+` WHERE a.user_id = $1 ORDER BY a.assigned_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("assignments: list: %w", err)
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func scanAssignments(rows pgx.Rows) ([]authz.RoleAssignment, error) {
	var out []authz.RoleAssignment
	for rows.Next() {
		var a authz.RoleAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleID, &a.AssignedAt, &a.AssignedBy, &a.IsActive, &a.RevokedAt, &a.RevokedBy); err != nil {
			return nil, fmt.Errorf("assignments: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Assign creates an active assignment. Re-assigning an already active role
// is a no-op returning the existing row.
func (r *Repository) Assign(ctx context.Context, userID string, roleID int64, assignedBy string) (authz.RoleAssignment, error) {
	var a authz.RoleAssignment
	err := r.pool.QueryRow(ctx, selectAssignments+` WHERE a.user_id = $1 AND a.role_id = $2 AND a.is_active`, userID, roleID).
		Scan(&a.ID, &a.UserID, &a.RoleID, &a.AssignedAt, &a.AssignedBy, &a.IsActive, &a.RevokedAt, &a.RevokedBy)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return authz.RoleAssignment{}, fmt.Errorf("assignments: lookup: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
INSERT INTO role_assignments (user_id, role_id, assigned_at, assigned_by, is_active)
VALUES ($1, $2, now(), $3, TRUE)
RETURNING id, user_id, role_id, assigned_at, assigned_by, is_active, revoked_at, revoked_by`,
		userID, roleID, assignedBy).
		Scan(&a.ID, &a.UserID, &a.RoleID, &a.AssignedAt, &a.AssignedBy, &a.IsActive, &a.RevokedAt, &a.RevokedBy)
	if err != nil {
		return authz.RoleAssignment{}, fmt.Errorf("assignments: insert: %w", err)
	}
	return a, nil
}

// Revoke soft-deletes an assignment, recording who revoked it and when.
func (r *Repository) Revoke(ctx context.Context, id int64, revokedBy string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE role_assignments
SET is_active = FALSE, revoked_at = now(), revoked_by = $2
WHERE id = $1 AND is_active`, id, revokedBy)
	if err != nil {
		return fmt.Errorf("assignments: revoke: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
