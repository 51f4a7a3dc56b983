package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborvet/harborvet/internal/authz"
	"github.com/harborvet/harborvet/internal/platform/db"
	"github.com/harborvet/harborvet/internal/shared"
)

// Repository provides PostgreSQL backed persistence for custom roles. It
// also implements authz.RoleStore for the role catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectRoles = `
SELECT id, practice_id, name, description, is_system, created_at, updated_at
FROM roles`

// GetRoles returns system roles plus, when practiceID is set, the custom
// roles of that practice, each with its ordered permission list.
func (r *Repository) GetRoles(ctx context.Context, practiceID *int64) ([]authz.Role, error) {
	records, err := r.list(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	roles := make([]authz.Role, len(records))
	for i, rec := range records {
		roles[i] = rec.Role()
	}
	return roles, nil
}

// List returns role records for administration.
func (r *Repository) List(ctx context.Context, practiceID *int64) ([]RoleRecord, error) {
	return r.list(ctx, practiceID)
}

func (r *Repository) list(ctx context.Context, practiceID *int64) ([]RoleRecord, error) {
	query := selectRoles + ` WHERE practice_id IS NULL`
	args := []any{}
	if practiceID != nil {
		query = selectRoles + ` WHERE practice_id IS NULL OR practice_id = $1`
		args = append(args, *practiceID)
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()

	var records []RoleRecord
	ids := make([]int64, 0)
	for rows.Next() {
		var rec RoleRecord
		if err := rows.Scan(&rec.ID, &rec.PracticeID, &rec.Name, &rec.Description, &rec.IsSystem, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		records = append(records, rec)
		ids = append(ids, rec.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: rows: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	permissions, err := r.permissionsByRole(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Permissions = permissions[records[i].ID]
	}
	return records, nil
}

// permissionsByRole loads permission entries ordered by position so that the
// first-match-wins rule stays deterministic across restarts.
func (r *Repository) permissionsByRole(ctx context.Context, roleIDs []int64) (map[int64][]authz.Permission, error) {
	rows, err := r.pool.Query(ctx, `
SELECT role_id, resource, action, granted, conditions
FROM role_permissions
WHERE role_id = ANY($1)
ORDER BY role_id, position`, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("roles: permissions: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]authz.Permission)
	for rows.Next() {
		var (
			roleID   int64
			perm     authz.Permission
			rawConds []byte
		)
		if err := rows.Scan(&roleID, &perm.Resource, &perm.Action, &perm.Granted, &rawConds); err != nil {
			return nil, fmt.Errorf("roles: scan permission: %w", err)
		}
		if len(rawConds) > 0 {
			if err := json.Unmarshal(rawConds, &perm.Conditions); err != nil {
				return nil, fmt.Errorf("roles: decode conditions: %w", err)
			}
		}
		out[roleID] = append(out[roleID], perm)
	}
	return out, rows.Err()
}

// Get fetches one role record.
func (r *Repository) Get(ctx context.Context, id int64) (RoleRecord, error) {
	var rec RoleRecord
	err := r.pool.QueryRow(ctx, selectRoles+` WHERE id = $1`, id).
		Scan(&rec.ID, &rec.PracticeID, &rec.Name, &rec.Description, &rec.IsSystem, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoleRecord{}, shared.ErrNotFound
	}
	if err != nil {
		return RoleRecord{}, fmt.Errorf("roles: get: %w", err)
	}
	permissions, err := r.permissionsByRole(ctx, []int64{rec.ID})
	if err != nil {
		return RoleRecord{}, err
	}
	rec.Permissions = permissions[rec.ID]
	return rec, nil
}

// Create inserts a custom role with its permission list in one transaction.
func (r *Repository) Create(ctx context.Context, practiceID int64, name, description string, permissions []authz.Permission) (RoleRecord, error) {
	var rec RoleRecord
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
INSERT INTO roles (practice_id, name, description, is_system)
VALUES ($1, $2, $3, FALSE)
RETURNING id, practice_id, name, description, is_system, created_at, updated_at`,
			practiceID, name, description).
			Scan(&rec.ID, &rec.PracticeID, &rec.Name, &rec.Description, &rec.IsSystem, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return shared.ErrDuplicateRole
			}
			return fmt.Errorf("roles: insert: %w", err)
		}
		return replacePermissions(ctx, tx, rec.ID, permissions)
	})
	if err != nil {
		return RoleRecord{}, err
	}
	rec.Permissions = permissions
	return rec, nil
}

// SetPermissions replaces a role's permission list.
func (r *Repository) SetPermissions(ctx context.Context, roleID int64, permissions []authz.Permission) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := replacePermissions(ctx, tx, roleID, permissions); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE roles SET updated_at = now() WHERE id = $1`, roleID); err != nil {
			return fmt.Errorf("roles: touch: %w", err)
		}
		return nil
	})
}

func replacePermissions(ctx context.Context, tx pgx.Tx, roleID int64, permissions []authz.Permission) error {
	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("roles: clear permissions: %w", err)
	}
	for position, perm := range permissions {
		conds, err := json.Marshal(perm.Conditions)
		if err != nil {
			return fmt.Errorf("roles: encode conditions: %w", err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO role_permissions (role_id, position, resource, action, granted, conditions)
VALUES ($1, $2, $3, $4, $5, $6)`,
			roleID, position, perm.Resource, perm.Action, perm.Granted, conds); err != nil {
			return fmt.Errorf("roles: insert permission: %w", err)
		}
	}
	return nil
}

// Update changes name and description of a custom role.
func (r *Repository) Update(ctx context.Context, id int64, name, description string) (RoleRecord, error) {
	var rec RoleRecord
	err := r.pool.QueryRow(ctx, `
UPDATE roles SET name = $2, description = $3, updated_at = now()
WHERE id = $1
RETURNING id, practice_id, name, description, is_system, created_at, updated_at`,
		id, name, description).
		Scan(&rec.ID, &rec.PracticeID, &rec.Name, &rec.Description, &rec.IsSystem, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoleRecord{}, shared.ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return RoleRecord{}, shared.ErrDuplicateRole
		}
		return RoleRecord{}, fmt.Errorf("roles: update: %w", err)
	}
	return rec, nil
}

// Delete removes a custom role and its permissions.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND is_system = FALSE`, id)
	if err != nil {
		return fmt.Errorf("roles: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// PracticeIDs lists practices that have at least one custom role. Used
// by the cache warm job to know which entries are worth preloading.
func (r *Repository) PracticeIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT practice_id FROM roles WHERE practice_id IS NOT NULL ORDER BY practice_id`)
	if err != nil {
		return nil, fmt.Errorf("roles: practice ids: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("roles: practice ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
