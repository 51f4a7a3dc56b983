package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// PermissionRequirement names one resource/action pair for batch checks.
type PermissionRequirement struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// ResolverConfig collects Resolver dependencies. Overrides may be nil, which
// disables step 1 entirely; Recorder may be nil.
type ResolverConfig struct {
	Assignments *AssignmentResolver
	Overrides   OverrideStore
	Catalog     *Catalog
	Logger      *slog.Logger
	Now         func() time.Time
	Recorder    DecisionRecorder
}

// Resolver answers "may this user perform this action on this resource". It
// merges overrides, assigned roles, role templates, resource aliases and
// attribute conditions under a strict precedence order, and always
// terminates in a CheckResult; no backing-store failure escapes as an error.
type Resolver struct {
	assignments *AssignmentResolver
	overrides   OverrideStore
	catalog     *Catalog
	logger      *slog.Logger
	now         func() time.Time
	recorder    DecisionRecorder
}

// NewResolver constructs a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		assignments: cfg.Assignments,
		overrides:   cfg.Overrides,
		catalog:     cfg.Catalog,
		logger:      logger,
		now:         now,
		recorder:    cfg.Recorder,
	}
}

// CheckPermission resolves a single permission check. Precedence, in order:
// active override, SUPER_ADMIN short-circuit, aggregated role permissions
// with resource aliasing, then attached conditions. An override beats
// everything after it, so an override can deny even a SUPER_ADMIN.
func (r *Resolver) CheckPermission(ctx context.Context, pctx PermissionContext) CheckResult {
	overrides, roles := r.prefetch(ctx, pctx)
	return r.finish(r.evaluate(pctx, overrides, roles))
}

// prefetch runs the two independent store reads concurrently. Both paths
// degrade internally: an override store failure reads as "no override" and
// the assignment path falls back to the legacy role.
func (r *Resolver) prefetch(ctx context.Context, pctx PermissionContext) ([]PermissionOverride, []Role) {
	var (
		overrides []PermissionOverride
		roles     []Role
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		overrides = r.activeOverrides(gctx, pctx)
		return nil
	})
	g.Go(func() error {
		roles = r.assignments.AssignedRoles(gctx, pctx.UserID, pctx.PracticeID, pctx.UserRole)
		return nil
	})
	_ = g.Wait()
	return overrides, roles
}

func (r *Resolver) activeOverrides(ctx context.Context, pctx PermissionContext) []PermissionOverride {
	if r.overrides == nil {
		return nil
	}
	var practiceID int64
	if pctx.PracticeID != nil {
		practiceID = *pctx.PracticeID
	}
	overrides, err := r.overrides.GetActive(ctx, pctx.UserID, practiceID, pctx.ResourceType, pctx.Action)
	if err != nil {
		r.logger.Warn("override store unavailable, continuing with role evaluation",
			slog.String("user_id", pctx.UserID), slog.Any("error", err))
		return nil
	}
	return overrides
}

// evaluate is the pure decision function over already-fetched data.
func (r *Resolver) evaluate(pctx PermissionContext, overrides []PermissionOverride, roles []Role) CheckResult {
	now := r.now()
	for _, o := range overrides {
		if o.Resource != pctx.ResourceType || o.Action != pctx.Action {
			continue
		}
		if !o.ActiveAt(now) {
			continue
		}
		if o.Granted {
			return CheckResult{Allowed: true, Reason: ReasonGrantedOverride}
		}
		return CheckResult{Allowed: false, Reason: ReasonDeniedOverride}
	}

	if len(roles) == 0 {
		return CheckResult{Allowed: false, Reason: ReasonUnknownRole}
	}
	for _, role := range roles {
		if role.Name == RoleSuperAdmin {
			return CheckResult{Allowed: true, Reason: ReasonSuperAdmin}
		}
	}

	perm, found := matchPermission(roles, pctx.ResourceType, pctx.Action)
	if !found {
		return CheckResult{
			Allowed:            false,
			Reason:             ReasonNotFound,
			MissingPermissions: []string{PermissionKey(pctx.ResourceType, pctx.Action)},
		}
	}
	if !perm.Granted {
		return CheckResult{Allowed: false, Reason: ReasonExplicitDeny}
	}
	if len(perm.Conditions) > 0 {
		if ok, reason := evalConditions(perm.Conditions, evalContext(pctx)); !ok {
			return CheckResult{Allowed: false, Reason: reason}
		}
	}
	return CheckResult{Allowed: true, Reason: ReasonGrantedByRole}
}

// matchPermission searches the aggregated permissions of all roles in
// assignment order for the first entry matching the action and any candidate
// resource name. First match wins, which also settles duplicate
// (resource, action) entries within a role deterministically.
func matchPermission(roles []Role, resource Resource, action Action) (Permission, bool) {
	candidates := candidateResources(resource)
	for _, role := range roles {
		for _, perm := range role.Permissions {
			if perm.Action != action {
				continue
			}
			for _, candidate := range candidates {
				if perm.Resource == candidate {
					return perm, true
				}
			}
		}
	}
	return Permission{}, false
}

// evalContext merges identity fields with the caller-supplied attributes for
// condition evaluation. Identity fields win on key collisions.
func evalContext(pctx PermissionContext) map[string]any {
	merged := make(map[string]any, len(pctx.Extra)+3)
	for k, v := range pctx.Extra {
		merged[k] = v
	}
	merged["userId"] = pctx.UserID
	if pctx.PracticeID != nil {
		merged["practiceId"] = *pctx.PracticeID
	}
	if pctx.ResourceID != "" {
		merged["resourceId"] = pctx.ResourceID
	}
	return merged
}

// CheckMultiplePermissions runs every requirement through the full
// precedence chain and allows only when all pass. Every failing requirement
// lands in MissingPermissions so callers can present the complete
// deficiency list, not just the first failure.
func (r *Resolver) CheckMultiplePermissions(ctx context.Context, base PermissionContext, requirements []PermissionRequirement) CheckResult {
	var missing []string
	for _, req := range requirements {
		pctx := base
		pctx.ResourceType = req.Resource
		pctx.Action = req.Action
		if result := r.CheckPermission(ctx, pctx); !result.Allowed {
			missing = append(missing, PermissionKey(req.Resource, req.Action))
		}
	}
	if len(missing) > 0 {
		return CheckResult{
			Allowed:            false,
			Reason:             "Missing required permissions",
			MissingPermissions: missing,
		}
	}
	return CheckResult{Allowed: true, Reason: "All required permissions granted"}
}

// CheckResourceOwnership layers an ownership floor on top of the basic
// check: a non-admin needs the resource's owner to be them exactly, while
// roles in the admin bypass set act regardless of ownership. An unknown
// owner leaves the basic decision standing; the lookup failing must not
// change what the roles already granted.
func (r *Resolver) CheckResourceOwnership(ctx context.Context, pctx PermissionContext, ownerLookup OwnerLookup) CheckResult {
	result := r.CheckPermission(ctx, pctx)
	if !result.Allowed || pctx.ResourceID == "" || ownerLookup == nil {
		return result
	}

	owner, err := ownerLookup(ctx, pctx.ResourceType, pctx.ResourceID)
	if err != nil {
		r.logger.Warn("owner lookup failed, keeping role-based decision",
			slog.String("resource_type", string(pctx.ResourceType)),
			slog.String("resource_id", pctx.ResourceID),
			slog.Any("error", err))
		return result
	}
	if owner == "" || owner == pctx.UserID {
		return result
	}

	for _, role := range r.assignments.AssignedRoles(ctx, pctx.UserID, pctx.PracticeID, pctx.UserRole) {
		if BypassesOwnership(role.Name) {
			return result
		}
	}
	return r.finish(CheckResult{
		Allowed: false,
		Reason:  fmt.Sprintf("Resource %s is owned by another user", PermissionKey(pctx.ResourceType, pctx.Action)),
	})
}

// InvalidateRoleCache drops cached role sets, globally when practiceID is
// nil.
func (r *Resolver) InvalidateRoleCache(ctx context.Context, practiceID *int64) {
	if r.catalog != nil {
		r.catalog.Invalidate(ctx, practiceID)
	}
}

func (r *Resolver) finish(result CheckResult) CheckResult {
	if r.recorder != nil {
		r.recorder.RecordDecision(result.Allowed, result.Reason)
	}
	return result
}
