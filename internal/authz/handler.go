package authz

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harborvet/harborvet/internal/platform/httpx"
	"github.com/harborvet/harborvet/internal/shared"
)

// Handler exposes the authorization core over HTTP: single and batch checks
// for UI gating, plus the permission catalog listing.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	validate *validator.Validate
}

// NewHandler constructs the authz HTTP handler.
func NewHandler(logger *slog.Logger, resolver *Resolver) *Handler {
	return &Handler{logger: logger, resolver: resolver, validate: validator.New()}
}

// MountRoutes registers authz endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.check)
	r.Post("/check-batch", h.checkBatch)
	r.Get("/permissions", h.listPermissions)
}

type checkRequest struct {
	ResourceType Resource       `json:"resource_type" validate:"required"`
	Action       Action         `json:"action" validate:"required"`
	ResourceID   string         `json:"resource_id"`
	Extra        map[string]any `json:"extra"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil || actor.UserID == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated actor")
		return
	}
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result := h.resolver.CheckPermission(r.Context(), PermissionContext{
		UserID:       actor.UserID,
		UserRole:     actor.Role,
		PracticeID:   actor.PracticeID,
		ResourceID:   req.ResourceID,
		ResourceType: req.ResourceType,
		Action:       req.Action,
		Extra:        req.Extra,
	})
	httpx.JSON(w, http.StatusOK, result)
}

type checkBatchRequest struct {
	Requirements []PermissionRequirement `json:"requirements" validate:"required,min=1,dive"`
}

func (h *Handler) checkBatch(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil || actor.UserID == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated actor")
		return
	}
	var req checkBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	base := PermissionContext{
		UserID:     actor.UserID,
		UserRole:   actor.Role,
		PracticeID: actor.PracticeID,
	}
	result := h.resolver.CheckMultiplePermissions(r.Context(), base, req.Requirements)
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	entries := CatalogEntries()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Category != entries[j].Category {
			return entries[i].Category < entries[j].Category
		}
		return PermissionKey(entries[i].Resource, entries[i].Action) <
			PermissionKey(entries[j].Resource, entries[j].Action)
	})
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": entries})
}
