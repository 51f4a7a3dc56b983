// Package overrides manages per-user permission overrides: time-boxed
// grant/deny exceptions that outrank every role-derived decision.
package overrides

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborvet/harborvet/internal/authz"
	"github.com/harborvet/harborvet/internal/shared"
)

// Repository provides PostgreSQL backed persistence for overrides. It
// implements authz.OverrideStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectOverrides = `
SELECT id, user_id, resource, action, granted, reason, practice_id, created_at, expires_at, status
FROM permission_overrides`

// GetActive returns overrides matching the lookup that are active and not
// yet expired. Expiry is a pure time comparison at read time; the status
// column is only flipped afterwards by the maintenance sweep.
func (r *Repository) GetActive(ctx context.Context, userID string, practiceID int64, resource authz.Resource, action authz.Action) ([]authz.PermissionOverride, error) {
	rows, err := r.pool.Query(ctx, selectOverrides+`
WHERE user_id = $1 AND practice_id = $2 AND resource = $3 AND action = $4
  AND status = 'active'
  AND (expires_at IS NULL OR expires_at > now())
ORDER BY created_at DESC`, userID, practiceID, resource, action)
	if err != nil {
		return nil, fmt.Errorf("overrides: query: %w", err)
	}
	defer rows.Close()
	return scanOverrides(rows)
}

// ListForUser returns every override of a user in the practice, regardless
// of status, for administration screens.
func (r *Repository) ListForUser(ctx context.Context, userID string, practiceID int64) ([]authz.PermissionOverride, error) {
	rows, err := r.pool.Query(ctx, selectOverrides+`
WHERE user_id = $1 AND practice_id = $2
ORDER BY created_at DESC`, userID, practiceID)
	if err != nil {
		return nil, fmt.Errorf("overrides: list: %w", err)
	}
	defer rows.Close()
	return scanOverrides(rows)
}

func scanOverrides(rows pgx.Rows) ([]authz.PermissionOverride, error) {
	var out []authz.PermissionOverride
	for rows.Next() {
		var o authz.PermissionOverride
		if err := rows.Scan(&o.ID, &o.UserID, &o.Resource, &o.Action, &o.Granted, &o.Reason, &o.PracticeID, &o.CreatedAt, &o.ExpiresAt, &o.Status); err != nil {
			return nil, fmt.Errorf("overrides: scan: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Create inserts a new active override.
func (r *Repository) Create(ctx context.Context, o authz.PermissionOverride) (authz.PermissionOverride, error) {
	err := r.pool.QueryRow(ctx, `
INSERT INTO permission_overrides (id, user_id, resource, action, granted, reason, practice_id, created_at, expires_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), $8, 'active')
RETURNING created_at`,
		o.ID, o.UserID, o.Resource, o.Action, o.Granted, o.Reason, o.PracticeID, o.ExpiresAt).
		Scan(&o.CreatedAt)
	if err != nil {
		return authz.PermissionOverride{}, fmt.Errorf("overrides: insert: %w", err)
	}
	o.Status = authz.OverrideActive
	return o, nil
}

// Revoke flips an active override to revoked.
func (r *Repository) Revoke(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE permission_overrides SET status = 'revoked'
WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return fmt.Errorf("overrides: revoke: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ExpireDue flips the status of overrides whose expiry has passed. Read
// paths already ignore them; this keeps reporting queries honest.
func (r *Repository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE permission_overrides SET status = 'expired'
WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("overrides: expire due: %w", err)
	}
	return tag.RowsAffected(), nil
}
