package authz

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harborvet/harborvet/internal/shared"
)

func gatedRequest(t *testing.T, mw func(http.Handler) http.Handler, actor *shared.Actor) *httptest.ResponseRecorder {
	t.Helper()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/pets", nil)
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestMiddlewareRequire(t *testing.T) {
	resolver := newTestResolver(&stubRoleStore{}, &stubAssignmentStore{}, &stubOverrideStore{})
	mw := Middleware{Resolver: resolver, Logger: slog.Default()}

	t.Run("allowed", func(t *testing.T) {
		res := gatedRequest(t, mw.Require(ResourcePets, ActionCreate), &shared.Actor{UserID: "42", Role: RoleReceptionist, PracticeID: pid(1)})
		if res.Code != http.StatusNoContent {
			t.Fatalf("expected pass-through, got %d", res.Code)
		}
	})
	t.Run("denied", func(t *testing.T) {
		res := gatedRequest(t, mw.Require(ResourceBilling, ActionDelete), &shared.Actor{UserID: "42", Role: RoleReceptionist, PracticeID: pid(1)})
		if res.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", res.Code)
		}
	})
	t.Run("no actor", func(t *testing.T) {
		res := gatedRequest(t, mw.Require(ResourcePets, ActionRead), nil)
		if res.Code != http.StatusForbidden {
			t.Fatalf("expected 403 without actor, got %d", res.Code)
		}
	})
}

func TestMiddlewareRequireAny(t *testing.T) {
	resolver := newTestResolver(&stubRoleStore{}, &stubAssignmentStore{}, &stubOverrideStore{})
	mw := Middleware{Resolver: resolver, Logger: slog.Default()}

	res := gatedRequest(t, mw.RequireAny(
		PermissionRequirement{ResourceBilling, ActionDelete},
		PermissionRequirement{ResourceAppointments, ActionRead},
	), &shared.Actor{UserID: "42", Role: RoleReceptionist, PracticeID: pid(1)})
	if res.Code != http.StatusNoContent {
		t.Fatalf("one satisfiable requirement should pass, got %d", res.Code)
	}

	res = gatedRequest(t, mw.RequireAny(
		PermissionRequirement{ResourceBilling, ActionDelete},
		PermissionRequirement{ResourceStaff, ActionManage},
	), &shared.Actor{UserID: "42", Role: RoleReceptionist, PracticeID: pid(1)})
	if res.Code != http.StatusForbidden {
		t.Fatalf("no satisfiable requirement should 403, got %d", res.Code)
	}
}
