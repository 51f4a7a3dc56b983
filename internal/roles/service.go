package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/harborvet/harborvet/internal/authz"
	"github.com/harborvet/harborvet/internal/shared"
)

// RepositoryPort defines data access methods for role administration.
type RepositoryPort interface {
	List(ctx context.Context, practiceID *int64) ([]RoleRecord, error)
	Get(ctx context.Context, id int64) (RoleRecord, error)
	Create(ctx context.Context, practiceID int64, name, description string, permissions []authz.Permission) (RoleRecord, error)
	Update(ctx context.Context, id int64, name, description string) (RoleRecord, error)
	SetPermissions(ctx context.Context, roleID int64, permissions []authz.Permission) error
	Delete(ctx context.Context, id int64) error
}

// CacheInvalidator drops cached role sets after mutations.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, practiceID *int64)
}

// Service handles custom role business logic. Every mutation invalidates
// the role cache for the affected practice before returning.
type Service struct {
	repo  RepositoryPort
	cache CacheInvalidator
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, cache CacheInvalidator) *Service {
	return &Service{repo: repo, cache: cache}
}

// List returns system roles and the practice's custom roles.
func (s *Service) List(ctx context.Context, practiceID *int64) ([]RoleRecord, error) {
	return s.repo.List(ctx, practiceID)
}

// Get fetches one role.
func (s *Service) Get(ctx context.Context, id int64) (RoleRecord, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a custom role scoped to one practice.
func (s *Service) Create(ctx context.Context, practiceID int64, name, description string, permissions []authz.Permission) (RoleRecord, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if err := validateName(name); err != nil {
		return RoleRecord{}, err
	}
	if err := validatePermissions(permissions); err != nil {
		return RoleRecord{}, err
	}
	rec, err := s.repo.Create(ctx, practiceID, name, description, permissions)
	if err != nil {
		return RoleRecord{}, err
	}
	s.invalidate(ctx, &practiceID)
	return rec, nil
}

// Update renames a custom role. System roles are immutable.
func (s *Service) Update(ctx context.Context, id int64, name, description string) (RoleRecord, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return RoleRecord{}, err
	}
	if existing.IsSystem {
		return RoleRecord{}, shared.ErrSystemRoleImmutable
	}
	name = strings.ToUpper(strings.TrimSpace(name))
	if err := validateName(name); err != nil {
		return RoleRecord{}, err
	}
	rec, err := s.repo.Update(ctx, id, name, description)
	if err != nil {
		return RoleRecord{}, err
	}
	s.invalidate(ctx, rec.PracticeID)
	return rec, nil
}

// SetPermissions replaces the permission list of a custom role.
func (s *Service) SetPermissions(ctx context.Context, id int64, permissions []authz.Permission) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return shared.ErrSystemRoleImmutable
	}
	if err := validatePermissions(permissions); err != nil {
		return err
	}
	if err := s.repo.SetPermissions(ctx, id, permissions); err != nil {
		return err
	}
	s.invalidate(ctx, existing.PracticeID)
	return nil
}

// Delete removes a custom role.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return shared.ErrSystemRoleImmutable
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, existing.PracticeID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, practiceID *int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, practiceID)
	}
}

func validateName(name string) error {
	if len(name) < 2 || len(name) > 50 {
		return fmt.Errorf("%w: name must be 2-50 characters", shared.ErrValidation)
	}
	for _, r := range name {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') && r != '_' {
			return fmt.Errorf("%w: name may only contain letters, digits and underscores", shared.ErrValidation)
		}
	}
	return nil
}

// validatePermissions rejects entries outside the permission catalog and
// duplicate (resource, action) pairs; the uniqueness invariant is enforced
// at write time so read-time first-match stays a formality.
func validatePermissions(permissions []authz.Permission) error {
	seen := make(map[string]struct{}, len(permissions))
	for _, perm := range permissions {
		key := authz.PermissionKey(perm.Resource, perm.Action)
		if _, ok := authz.LookupPermission(perm.Resource, perm.Action); !ok {
			return fmt.Errorf("%w: unknown permission %s", shared.ErrValidation, key)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate permission %s", shared.ErrValidation, key)
		}
		seen[key] = struct{}{}
		for _, cond := range perm.Conditions {
			switch cond.Operator {
			case authz.OpEquals, authz.OpNotEquals, authz.OpIn, authz.OpNotIn, authz.OpGreaterThan, authz.OpLessThan:
			default:
				return fmt.Errorf("%w: unsupported condition operator %q", shared.ErrValidation, cond.Operator)
			}
			if cond.Field == "" {
				return fmt.Errorf("%w: condition on %s missing field", shared.ErrValidation, key)
			}
		}
	}
	return nil
}
