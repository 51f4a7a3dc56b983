package overrides

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harborvet/harborvet/internal/authz"
	"github.com/harborvet/harborvet/internal/shared"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	ListForUser(ctx context.Context, userID string, practiceID int64) ([]authz.PermissionOverride, error)
	Create(ctx context.Context, o authz.PermissionOverride) (authz.PermissionOverride, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// CreateInput carries the fields an administrator supplies when granting
// or denying a permission out of band.
type CreateInput struct {
	UserID     string
	PracticeID int64
	Resource   authz.Resource
	Action     authz.Action
	Granted    bool
	Reason     string
	ExpiresAt  *time.Time
}

// Service validates and persists overrides.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Create records a new override. The reason is mandatory: every exception
// to the role model has to be explainable after the fact.
func (s *Service) Create(ctx context.Context, in CreateInput) (authz.PermissionOverride, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return authz.PermissionOverride{}, fmt.Errorf("%w: reason is required", shared.ErrValidation)
	}
	if strings.TrimSpace(in.UserID) == "" {
		return authz.PermissionOverride{}, fmt.Errorf("%w: user_id is required", shared.ErrValidation)
	}
	if _, ok := authz.LookupPermission(in.Resource, in.Action); !ok {
		return authz.PermissionOverride{}, fmt.Errorf("%w: unknown permission %s", shared.ErrValidation, authz.PermissionKey(in.Resource, in.Action))
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return authz.PermissionOverride{}, fmt.Errorf("%w: expires_at must be in the future", shared.ErrValidation)
	}

	created, err := s.repo.Create(ctx, authz.PermissionOverride{
		ID:         uuid.New(),
		UserID:     in.UserID,
		PracticeID: in.PracticeID,
		Resource:   in.Resource,
		Action:     in.Action,
		Granted:    in.Granted,
		Reason:     strings.TrimSpace(in.Reason),
		ExpiresAt:  in.ExpiresAt,
	})
	if err != nil {
		return authz.PermissionOverride{}, err
	}
	s.logger.Info("override created",
		"override_id", created.ID,
		"user_id", created.UserID,
		"permission", authz.PermissionKey(created.Resource, created.Action),
		"granted", created.Granted)
	return created, nil
}

// ListForUser returns a user's overrides within the practice.
func (s *Service) ListForUser(ctx context.Context, userID string, practiceID int64) ([]authz.PermissionOverride, error) {
	return s.repo.ListForUser(ctx, userID, practiceID)
}

// Revoke withdraws an active override.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Revoke(ctx, id); err != nil {
		return err
	}
	s.logger.Info("override revoked", "override_id", id)
	return nil
}

// ExpireDue marks overdue overrides expired and reports how many changed.
// Invoked from the maintenance worker.
func (s *Service) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("overrides expired", "count", n)
	}
	return n, nil
}
