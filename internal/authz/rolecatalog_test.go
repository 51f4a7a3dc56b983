package authz

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClockedCatalog(store RoleStore, ttl time.Duration) (*Catalog, *fakeClock) {
	clock := &fakeClock{now: testNow}
	catalog := NewCatalog(CatalogConfig{
		Store:  store,
		Logger: slog.Default(),
		TTL:    ttl,
		Now:    clock.Now,
	})
	return catalog, clock
}

func TestCatalogMemoizesWithinTTL(t *testing.T) {
	store := &stubRoleStore{roles: []Role{{ID: 10, Name: "GROOMER", PracticeID: pid(1)}}}
	catalog, clock := newClockedCatalog(store, 5*time.Minute)

	catalog.Roles(context.Background(), pid(1))
	catalog.Roles(context.Background(), pid(1))
	if store.calls != 1 {
		t.Fatalf("expected one store read inside the TTL window, got %d", store.calls)
	}

	clock.Advance(5 * time.Minute)
	catalog.Roles(context.Background(), pid(1))
	if store.calls != 2 {
		t.Fatalf("expected refetch after TTL expiry, got %d calls", store.calls)
	}
}

func TestCatalogKeysAreIndependent(t *testing.T) {
	store := &stubRoleStore{}
	catalog, _ := newClockedCatalog(store, 5*time.Minute)

	catalog.Roles(context.Background(), pid(1))
	catalog.Roles(context.Background(), pid(2))
	catalog.Roles(context.Background(), nil)
	if store.calls != 3 {
		t.Fatalf("each cache key fetches once, got %d calls", store.calls)
	}
}

func TestCatalogMergesTemplatesWithStoredRoles(t *testing.T) {
	custom := Role{ID: 10, Name: "GROOMER", PracticeID: pid(1), Permissions: []Permission{
		{Resource: ResourcePets, Action: ActionRead, Granted: true},
	}}
	store := &stubRoleStore{roles: []Role{custom}}
	catalog, _ := newClockedCatalog(store, 5*time.Minute)

	roles := catalog.Roles(context.Background(), pid(1))
	names := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		names[role.Name] = struct{}{}
	}
	for _, want := range []string{RoleSuperAdmin, RoleClient, "GROOMER"} {
		if _, ok := names[want]; !ok {
			t.Fatalf("merged set missing %s: %v", want, names)
		}
	}
}

func TestCatalogStoredRoleOverridesTemplate(t *testing.T) {
	trimmed := Role{ID: 50, Name: RoleReceptionist, PracticeID: pid(1), Permissions: []Permission{
		{Resource: ResourceAppointments, Action: ActionRead, Granted: true},
	}}
	store := &stubRoleStore{roles: []Role{trimmed}}
	catalog, _ := newClockedCatalog(store, 5*time.Minute)

	role, ok := catalog.RoleByName(context.Background(), RoleReceptionist, pid(1))
	if !ok {
		t.Fatalf("RECEPTIONIST must resolve")
	}
	if role.ID != 50 || len(role.Permissions) != 1 {
		t.Fatalf("stored role must replace the template, got %+v", role)
	}
}

func TestCatalogInvalidateDropsEntryImmediately(t *testing.T) {
	store := &stubRoleStore{}
	catalog, _ := newClockedCatalog(store, 5*time.Minute)

	catalog.Roles(context.Background(), pid(1))
	catalog.Invalidate(context.Background(), pid(1))
	catalog.Roles(context.Background(), pid(1))
	if store.calls != 2 {
		t.Fatalf("invalidation must force a refetch, got %d calls", store.calls)
	}
}

func TestCatalogSystemInvalidationDropsEverything(t *testing.T) {
	store := &stubRoleStore{}
	catalog, _ := newClockedCatalog(store, 5*time.Minute)

	catalog.Roles(context.Background(), pid(1))
	catalog.Roles(context.Background(), pid(2))
	catalog.Invalidate(context.Background(), nil)
	catalog.Roles(context.Background(), pid(1))
	catalog.Roles(context.Background(), pid(2))
	if store.calls != 4 {
		t.Fatalf("global invalidation must drop every key, got %d calls", store.calls)
	}
}

func TestCatalogServesStaleOnStoreFailure(t *testing.T) {
	store := &stubRoleStore{roles: []Role{{ID: 10, Name: "GROOMER", PracticeID: pid(1)}}}
	catalog, clock := newClockedCatalog(store, 5*time.Minute)

	catalog.Roles(context.Background(), pid(1))
	store.err = errors.New("connection refused")
	clock.Advance(10 * time.Minute)

	roles := catalog.Roles(context.Background(), pid(1))
	found := false
	for _, role := range roles {
		if role.Name == "GROOMER" {
			found = true
		}
	}
	if !found {
		t.Fatalf("stale cache must be served over templates when the store fails")
	}
}

func TestCatalogFallsBackToTemplatesWithoutCache(t *testing.T) {
	store := &stubRoleStore{err: errors.New("connection refused")}
	catalog, _ := newClockedCatalog(store, 5*time.Minute)

	roles := catalog.Roles(context.Background(), pid(1))
	if len(roles) != len(TemplateRoles()) {
		t.Fatalf("expected template-only fallback, got %d roles", len(roles))
	}
}

func TestCatalogBroadcastDropsPeerEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	newPeer := func(store *stubRoleStore) *Catalog {
		return NewCatalog(CatalogConfig{
			Store:  store,
			Redis:  client,
			Logger: slog.Default(),
			TTL:    5 * time.Minute,
			Now:    func() time.Time { return testNow },
		})
	}
	storeA := &stubRoleStore{}
	storeB := &stubRoleStore{}
	a := newPeer(storeA)
	b := newPeer(storeB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.ListenInvalidations(ctx) }()

	// Let the subscriber attach before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for mr.PubSubNumSub(invalidateChannel)[invalidateChannel] == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.Roles(ctx, pid(1))
	a.Invalidate(ctx, pid(1))

	deadline = time.Now().Add(2 * time.Second)
	for {
		b.Roles(ctx, pid(1))
		if storeB.calls >= 2 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("peer cache entry was never dropped (calls=%d)", storeB.calls)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
