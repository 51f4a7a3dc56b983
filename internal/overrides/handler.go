package overrides

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/harborvet/harborvet/internal/authz"
	"github.com/harborvet/harborvet/internal/platform/httpx"
	"github.com/harborvet/harborvet/internal/shared"
)

// Handler wires override administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    authz.Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New()}
}

// MountRoutes registers override routes. Overrides outrank role decisions,
// so managing them requires the same permission as managing roles.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.ResourceRoles, authz.ActionManage))
		r.Get("/users/{userID}", h.listForUser)
		r.Post("/", h.create)
		r.Delete("/{overrideID}", h.revoke)
	})
}

func (h *Handler) listForUser(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.PracticeID == nil {
		httpx.Problem(w, http.StatusBadRequest, "Practice Required", "overrides are scoped to a practice")
		return
	}
	items, err := h.service.ListForUser(r.Context(), chi.URLParam(r, "userID"), *actor.PracticeID)
	if err != nil {
		h.fail(w, r, "list overrides", err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pg := shared.NewPagination(page, perPage, len(items))
	start := (pg.Page - 1) * pg.PerPage
	if start > len(items) {
		start = len(items)
	}
	end := start + pg.PerPage
	if end > len(items) {
		end = len(items)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"overrides": items[start:end], "pagination": pg})
}

type createOverrideRequest struct {
	UserID    string     `json:"user_id" validate:"required"`
	Resource  string     `json:"resource" validate:"required"`
	Action    string     `json:"action" validate:"required"`
	Granted   bool       `json:"granted"`
	Reason    string     `json:"reason" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.PracticeID == nil {
		httpx.Problem(w, http.StatusBadRequest, "Practice Required", "overrides are scoped to a practice")
		return
	}
	var req createOverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), CreateInput{
		UserID:     req.UserID,
		PracticeID: *actor.PracticeID,
		Resource:   authz.Resource(req.Resource),
		Action:     authz.Action(req.Action),
		Granted:    req.Granted,
		Reason:     req.Reason,
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		h.fail(w, r, "create override", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "overrideID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Override ID", "override id must be a UUID")
		return
	}
	if err := h.service.Revoke(r.Context(), id); err != nil {
		h.fail(w, r, "revoke override", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "override not found")
	case errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
