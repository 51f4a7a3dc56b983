package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harborvet/harborvet/internal/shared"
)

func TestActorMiddlewareResolvesHeaders(t *testing.T) {
	var got *shared.Actor
	handler := ActorMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = shared.ActorFromContext(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "42")
	req.Header.Set(HeaderUserRole, "VETERINARIAN")
	req.Header.Set(HeaderPracticeID, "7")

	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("expected actor in context")
	}
	if got.UserID != "42" || got.Role != "VETERINARIAN" {
		t.Fatalf("unexpected actor: %+v", got)
	}
	if got.PracticeID == nil || *got.PracticeID != 7 {
		t.Fatalf("unexpected practice id: %v", got.PracticeID)
	}
}

func TestActorMiddlewarePassesAnonymousThrough(t *testing.T) {
	called := false
	handler := ActorMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			if shared.ActorFromContext(r.Context()) != nil {
				t.Fatal("expected no actor for anonymous request")
			}
		}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("expected handler to run")
	}
}

func TestActorMiddlewareRejectsMalformedPracticeID(t *testing.T) {
	handler := ActorMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "42")
	req.Header.Set(HeaderPracticeID, "clinic-seven")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
