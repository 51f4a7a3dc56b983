package authz

import (
	"context"
	"log/slog"
)

// AssignmentResolver turns stored role assignments into concrete role sets.
// When the assignment store is unavailable, or a user has no explicit
// assignments, the caller-supplied legacy single role string becomes the
// sole assignment. That keeps pre-migration users working.
type AssignmentResolver struct {
	store   AssignmentStore
	catalog *Catalog
	logger  *slog.Logger
}

// NewAssignmentResolver constructs an AssignmentResolver. A nil store is
// allowed and forces the legacy path for every user.
func NewAssignmentResolver(store AssignmentStore, catalog *Catalog, logger *slog.Logger) *AssignmentResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentResolver{store: store, catalog: catalog, logger: logger}
}

// AssignedRoles returns the active roles held by the user, scoped to system
// roles plus those of the given practice. Assignment order is preserved and
// duplicate roles collapse to their first occurrence.
func (r *AssignmentResolver) AssignedRoles(ctx context.Context, userID string, practiceID *int64, legacyRole string) []Role {
	roles := r.resolveAssignments(ctx, userID, practiceID)
	if len(roles) > 0 {
		return roles
	}
	if legacyRole == "" {
		return nil
	}
	role, ok := r.catalog.RoleByName(ctx, legacyRole, practiceID)
	if !ok {
		r.logger.Warn("legacy role not resolvable", slog.String("user_id", userID), slog.String("role", legacyRole))
		return nil
	}
	return []Role{role}
}

func (r *AssignmentResolver) resolveAssignments(ctx context.Context, userID string, practiceID *int64) []Role {
	if r.store == nil {
		return nil
	}
	assignments, err := r.store.GetActiveAssignments(ctx, userID, practiceID)
	if err != nil {
		r.logger.Warn("assignment store unavailable, falling back to legacy role",
			slog.String("user_id", userID), slog.Any("error", err))
		return nil
	}

	// The catalog only ever yields system roles plus this practice's own;
	// assignments pointing elsewhere fall out of the index lookup.
	byID := make(map[int64]Role)
	for _, role := range r.catalog.Roles(ctx, practiceID) {
		byID[role.ID] = role
	}

	var roles []Role
	seen := make(map[int64]struct{}, len(assignments))
	for _, a := range assignments {
		if !a.IsActive {
			continue
		}
		if _, dup := seen[a.RoleID]; dup {
			continue
		}
		role, ok := byID[a.RoleID]
		if !ok {
			continue
		}
		seen[a.RoleID] = struct{}{}
		roles = append(roles, role)
	}
	return roles
}

// HasAnyRole reports whether the user's resolved role names intersect the
// target set.
func (r *AssignmentResolver) HasAnyRole(ctx context.Context, userID string, targetRoleNames []string, practiceID *int64, legacyRole string) bool {
	if len(targetRoleNames) == 0 {
		return false
	}
	targets := make(map[string]struct{}, len(targetRoleNames))
	for _, name := range targetRoleNames {
		targets[name] = struct{}{}
	}
	for _, role := range r.AssignedRoles(ctx, userID, practiceID, legacyRole) {
		if _, ok := targets[role.Name]; ok {
			return true
		}
	}
	return false
}
