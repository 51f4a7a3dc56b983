package assignments

import (
	"context"

	"github.com/harborvet/harborvet/internal/authz"
)

// RepositoryPort defines data access methods for assignment administration.
type RepositoryPort interface {
	Assign(ctx context.Context, userID string, roleID int64, assignedBy string) (authz.RoleAssignment, error)
	Revoke(ctx context.Context, id int64, revokedBy string) error
	ListForUser(ctx context.Context, userID string) ([]authz.RoleAssignment, error)
}

// Service handles assignment business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Assign grants a role to a user, recording the acting administrator.
func (s *Service) Assign(ctx context.Context, userID string, roleID int64, assignedBy string) (authz.RoleAssignment, error) {
	return s.repo.Assign(ctx, userID, roleID, assignedBy)
}

// Revoke soft-deletes an assignment.
func (s *Service) Revoke(ctx context.Context, id int64, revokedBy string) error {
	return s.repo.Revoke(ctx, id, revokedBy)
}

// ListForUser returns a user's full assignment history.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]authz.RoleAssignment, error) {
	return s.repo.ListForUser(ctx, userID)
}
