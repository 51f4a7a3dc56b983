package roles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborvet/harborvet/internal/authz"
	"github.com/harborvet/harborvet/internal/shared"
)

type fakeRepo struct {
	records map[int64]RoleRecord
	nextID  int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[int64]RoleRecord), nextID: 1}
}

func (f *fakeRepo) List(ctx context.Context, practiceID *int64) ([]RoleRecord, error) {
	var out []RoleRecord
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (RoleRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return RoleRecord{}, shared.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRepo) Create(ctx context.Context, practiceID int64, name, description string, permissions []authz.Permission) (RoleRecord, error) {
	rec := RoleRecord{
		ID:          f.nextID,
		PracticeID:  &practiceID,
		Name:        name,
		Description: description,
		Permissions: permissions,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	f.nextID++
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeRepo) Update(ctx context.Context, id int64, name, description string) (RoleRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return RoleRecord{}, shared.ErrNotFound
	}
	rec.Name = name
	rec.Description = description
	f.records[id] = rec
	return rec, nil
}

func (f *fakeRepo) SetPermissions(ctx context.Context, roleID int64, permissions []authz.Permission) error {
	rec, ok := f.records[roleID]
	if !ok {
		return shared.ErrNotFound
	}
	rec.Permissions = permissions
	f.records[roleID] = rec
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.records[id]; !ok {
		return shared.ErrNotFound
	}
	delete(f.records, id)
	return nil
}

type fakeInvalidator struct {
	calls []*int64
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, practiceID *int64) {
	f.calls = append(f.calls, practiceID)
}

func TestCreateValidatesAndInvalidates(t *testing.T) {
	repo := newFakeRepo()
	cache := &fakeInvalidator{}
	svc := NewService(repo, cache)

	rec, err := svc.Create(context.Background(), 1, "night_shift", "after hours staff", []authz.Permission{
		{Resource: authz.ResourcePets, Action: authz.ActionRead, Granted: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "NIGHT_SHIFT", rec.Name, "name should be uppercased")

	require.Len(t, cache.calls, 1)
	require.NotNil(t, cache.calls[0])
	assert.EqualValues(t, 1, *cache.calls[0])
}

func TestCreateRejectsBadNames(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeInvalidator{})

	_, err := svc.Create(context.Background(), 1, "x", "", nil)
	assert.Error(t, err, "too short")

	_, err = svc.Create(context.Background(), 1, "night-shift!", "", nil)
	assert.Error(t, err, "illegal characters")
}

func TestCreateRejectsUnknownAndDuplicatePermissions(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeInvalidator{})

	_, err := svc.Create(context.Background(), 1, "GROOMER", "", []authz.Permission{
		{Resource: "spaceships", Action: authz.ActionRead, Granted: true},
	})
	assert.ErrorContains(t, err, "unknown permission")

	_, err = svc.Create(context.Background(), 1, "GROOMER", "", []authz.Permission{
		{Resource: authz.ResourcePets, Action: authz.ActionRead, Granted: true},
		{Resource: authz.ResourcePets, Action: authz.ActionRead, Granted: false},
	})
	assert.ErrorContains(t, err, "duplicate permission")
}

func TestCreateRejectsBadConditionOperators(t *testing.T) {
	svc := NewService(newFakeRepo(), &fakeInvalidator{})

	_, err := svc.Create(context.Background(), 1, "GROOMER", "", []authz.Permission{
		{Resource: authz.ResourcePets, Action: authz.ActionRead, Granted: true, Conditions: []authz.Condition{
			{Field: "age", Operator: "between", Value: 3},
		}},
	})
	assert.ErrorContains(t, err, "unsupported condition operator")
}

func TestSystemRolesAreImmutable(t *testing.T) {
	repo := newFakeRepo()
	repo.records[7] = RoleRecord{ID: 7, Name: authz.RoleVeterinarian, IsSystem: true}
	svc := NewService(repo, &fakeInvalidator{})

	_, err := svc.Update(context.Background(), 7, "HACKED", "")
	assert.ErrorIs(t, err, shared.ErrSystemRoleImmutable)

	err = svc.SetPermissions(context.Background(), 7, nil)
	assert.ErrorIs(t, err, shared.ErrSystemRoleImmutable)

	err = svc.Delete(context.Background(), 7)
	assert.ErrorIs(t, err, shared.ErrSystemRoleImmutable)
}

func TestDeleteInvalidatesPracticeCache(t *testing.T) {
	repo := newFakeRepo()
	cache := &fakeInvalidator{}
	svc := NewService(repo, cache)

	rec, err := svc.Create(context.Background(), 3, "GROOMER", "", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), rec.ID))

	require.Len(t, cache.calls, 2)
	assert.EqualValues(t, 3, *cache.calls[1])
}
