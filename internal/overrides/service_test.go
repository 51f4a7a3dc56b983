package overrides

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborvet/harborvet/internal/authz"
	"github.com/harborvet/harborvet/internal/shared"
)

type fakeRepo struct {
	created []authz.PermissionOverride
	revoked []uuid.UUID
	expired int64
}

func (f *fakeRepo) ListForUser(ctx context.Context, userID string, practiceID int64) ([]authz.PermissionOverride, error) {
	var out []authz.PermissionOverride
	for _, o := range f.created {
		if o.UserID == userID && o.PracticeID == practiceID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeRepo) Create(ctx context.Context, o authz.PermissionOverride) (authz.PermissionOverride, error) {
	o.CreatedAt = time.Now()
	o.Status = authz.OverrideActive
	f.created = append(f.created, o)
	return o, nil
}

func (f *fakeRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	for _, o := range f.created {
		if o.ID == id {
			f.revoked = append(f.revoked, id)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	return f.expired, nil
}

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateOverride(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), CreateInput{
		UserID:     "42",
		PracticeID: 7,
		Resource:   authz.ResourceBilling,
		Action:     authz.ActionDelete,
		Granted:    true,
		Reason:     "covering for practice admin during audit",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, authz.OverrideActive, created.Status)
	require.Len(t, repo.created, 1)
}

func TestCreateOverrideRequiresReason(t *testing.T) {
	svc := newTestService(&fakeRepo{})

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:     "42",
		PracticeID: 7,
		Resource:   authz.ResourceBilling,
		Action:     authz.ActionDelete,
		Reason:     "   ",
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.ErrorContains(t, err, "reason")
}

func TestCreateOverrideRejectsUnknownPermission(t *testing.T) {
	svc := newTestService(&fakeRepo{})

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:     "42",
		PracticeID: 7,
		Resource:   "spaceships",
		Action:     authz.ActionRead,
		Reason:     "typo in resource",
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.ErrorContains(t, err, "unknown permission")
}

func TestCreateOverrideRejectsPastExpiry(t *testing.T) {
	svc := newTestService(&fakeRepo{})

	past := time.Now().Add(-time.Hour)
	_, err := svc.Create(context.Background(), CreateInput{
		UserID:     "42",
		PracticeID: 7,
		Resource:   authz.ResourceBilling,
		Action:     authz.ActionDelete,
		Reason:     "already over",
		ExpiresAt:  &past,
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.ErrorContains(t, err, "expires_at")
}

func TestRevokeOverride(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), CreateInput{
		UserID:     "42",
		PracticeID: 7,
		Resource:   authz.ResourceStaff,
		Action:     authz.ActionManage,
		Reason:     "temporary team lead",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), created.ID))
	assert.Equal(t, []uuid.UUID{created.ID}, repo.revoked)

	assert.ErrorIs(t, svc.Revoke(context.Background(), uuid.New()), shared.ErrNotFound)
}

func TestExpireDueReportsCount(t *testing.T) {
	repo := &fakeRepo{expired: 3}
	svc := newTestService(repo)

	n, err := svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
