package authz

import "context"

// RoleStore is the backing store for tenant role data. A nil practiceID
// requests system-defined roles only.
type RoleStore interface {
	GetRoles(ctx context.Context, practiceID *int64) ([]Role, error)
}

// AssignmentStore returns active role assignments for a user, optionally
// narrowed to one practice. Implementations decide transport; the reference
// deployment fronts this with an internal HTTP endpoint.
type AssignmentStore interface {
	GetActiveAssignments(ctx context.Context, userID string, practiceID *int64) ([]RoleAssignment, error)
}

// OverrideStore returns per-user overrides for one (resource, action) pair.
// Only rows with status active should be returned; time expiry is re-checked
// by the resolver against its own clock.
type OverrideStore interface {
	GetActive(ctx context.Context, userID string, practiceID int64, resource Resource, action Action) ([]PermissionOverride, error)
}

// OwnerLookup resolves the owning user of a resource instance. An empty
// owner means ownership is unknown and the check is left as decided.
type OwnerLookup func(ctx context.Context, resourceType Resource, resourceID string) (string, error)

// DecisionRecorder receives the outcome of every resolved check. The
// observability package provides the production implementation.
type DecisionRecorder interface {
	RecordDecision(allowed bool, reason string)
}
