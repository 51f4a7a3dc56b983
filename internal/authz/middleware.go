package authz

import (
	"log/slog"
	"net/http"

	"github.com/harborvet/harborvet/internal/shared"
)

// Middleware gates HTTP routes on permission checks. It is a thin consumer
// of the resolver: it builds a PermissionContext from the request actor and
// translates a denial into 403. Infrastructure failures inside the resolver
// already read as denials, so end users cannot tell them apart.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Require ensures the actor may perform action on resource.
func (m Middleware) Require(resource Resource, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor == nil || actor.UserID == "" {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			result := m.Resolver.CheckPermission(r.Context(), PermissionContext{
				UserID:       actor.UserID,
				UserRole:     actor.Role,
				PracticeID:   actor.PracticeID,
				ResourceType: resource,
				Action:       action,
			})
			if !result.Allowed {
				if m.Logger != nil {
					m.Logger.Info("request denied",
						slog.String("user_id", actor.UserID),
						slog.String("permission", PermissionKey(resource, action)),
						slog.String("reason", result.Reason))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the actor holds at least one of the given permissions.
func (m Middleware) RequireAny(requirements ...PermissionRequirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(requirements) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor := shared.ActorFromContext(r.Context())
			if actor == nil || actor.UserID == "" {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			base := PermissionContext{
				UserID:     actor.UserID,
				UserRole:   actor.Role,
				PracticeID: actor.PracticeID,
			}
			for _, req := range requirements {
				pctx := base
				pctx.ResourceType = req.Resource
				pctx.Action = req.Action
				if m.Resolver.CheckPermission(r.Context(), pctx).Allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}
