// Package authz implements the role-based authorization core: static role
// templates, tenant-scoped custom roles, per-user time-boxed overrides and
// attribute conditions, merged under a strict precedence order.
package authz

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Resource identifies a protectable entity type such as "pets" or "billing".
type Resource string

// Action is an operation verb applied to a resource.
type Action string

// Supported actions. ActionManage is a superset action matched literally;
// it is never expanded into the CRUD verbs.
const (
	ActionCreate   Action = "CREATE"
	ActionRead     Action = "READ"
	ActionUpdate   Action = "UPDATE"
	ActionDelete   Action = "DELETE"
	ActionManage   Action = "MANAGE"
	ActionApprove  Action = "APPROVE"
	ActionReject   Action = "REJECT"
	ActionAssign   Action = "ASSIGN"
	ActionUnassign Action = "UNASSIGN"
	ActionExport   Action = "EXPORT"
	ActionImport   Action = "IMPORT"
	ActionArchive  Action = "ARCHIVE"
	ActionRestore  Action = "RESTORE"
)

// Operator names a comparison applied by a permission condition.
type Operator string

// Supported condition operators.
const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
)

// Condition restricts a granted permission by comparing a context attribute
// against a value. A string value of the form "${name}" is replaced by the
// context entry "name" before the comparison runs.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Permission ties a resource and action to a grant decision. Within one role
// at most one entry exists per (resource, action) pair; when data violates
// that, the first entry in slice order wins.
type Permission struct {
	Resource   Resource    `json:"resource"`
	Action     Action      `json:"action"`
	Granted    bool        `json:"granted"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// Role bundles permissions under a name. System-defined roles carry no
// practice scope and are visible to every tenant; custom roles belong to
// exactly one practice.
type Role struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	SystemDefined bool         `json:"system_defined"`
	PracticeID    *int64       `json:"practice_id,omitempty"`
	Permissions   []Permission `json:"permissions"`
}

// RoleAssignment links a user to a role. Revocation is soft: IsActive flips
// false and the audit fields record who and when; rows are never deleted.
type RoleAssignment struct {
	ID         int64      `json:"id"`
	UserID     string     `json:"user_id"`
	RoleID     int64      `json:"role_id"`
	AssignedAt time.Time  `json:"assigned_at"`
	AssignedBy string     `json:"assigned_by"`
	IsActive   bool       `json:"is_active"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	RevokedBy  *string    `json:"revoked_by,omitempty"`
}

// OverrideStatus tracks the lifecycle of a permission override.
type OverrideStatus string

// Override lifecycle states. The active → expired transition is a pure time
// comparison at read time; revoked is an explicit administrative action.
const (
	OverrideActive  OverrideStatus = "active"
	OverrideExpired OverrideStatus = "expired"
	OverrideRevoked OverrideStatus = "revoked"
)

// PermissionOverride is a user-specific exception that takes precedence over
// every role-derived decision, including SUPER_ADMIN.
type PermissionOverride struct {
	ID         uuid.UUID      `json:"id"`
	UserID     string         `json:"user_id"`
	Resource   Resource       `json:"resource"`
	Action     Action         `json:"action"`
	Granted    bool           `json:"granted"`
	Reason     string         `json:"reason"`
	PracticeID int64          `json:"practice_id"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	Status     OverrideStatus `json:"status"`
}

// ActiveAt reports whether the override applies at the given instant.
func (o PermissionOverride) ActiveAt(now time.Time) bool {
	if o.Status != OverrideActive {
		return false
	}
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// PermissionContext carries everything a single check needs. UserRole is the
// legacy single-role string used when no explicit assignments exist for the
// user; Extra feeds condition evaluation alongside the identity fields.
type PermissionContext struct {
	UserID       string         `json:"user_id"`
	UserRole     string         `json:"user_role,omitempty"`
	PracticeID   *int64         `json:"practice_id,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	ResourceType Resource       `json:"resource_type"`
	Action       Action         `json:"action"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// CheckResult is the outcome of a permission check. MissingPermissions lists
// "resource:ACTION" identifiers for requirements the user lacks.
type CheckResult struct {
	Allowed            bool     `json:"allowed"`
	Reason             string   `json:"reason"`
	MissingPermissions []string `json:"missing_permissions,omitempty"`
}

// Reason strings returned by the resolver. Callers match on these for
// diagnostics; end users only ever see the allowed flag.
const (
	ReasonGrantedByRole   = "Permission granted by role"
	ReasonGrantedOverride = "Permission granted by override"
	ReasonDeniedOverride  = "Permission denied by override"
	ReasonNotFound        = "Permission not found in role"
	ReasonExplicitDeny    = "Permission explicitly denied"
	ReasonUnknownRole     = "Unknown user role"
	ReasonSuperAdmin      = "SUPER_ADMIN role grants all permissions"
)

// PermissionKey renders the canonical "resource:ACTION" identifier.
func PermissionKey(resource Resource, action Action) string {
	return fmt.Sprintf("%s:%s", resource, action)
}
