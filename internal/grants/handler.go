package grants

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gridscape/gridscape/internal/authz"
	"github.com/gridscape/gridscape/internal/platform/httpx"
)

// Handler manages regional grant endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     authz.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers grant lifecycle routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(authz.PermRegionsGrant))
		r.Post("/", h.createGrant)
		r.Post("/{id}/extend", h.extendGrant)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(authz.PermRegionsRevoke))
		r.Post("/{id}/revoke", h.revokeGrant)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(authz.PermRegionsView, authz.PermRegionsGrant))
		r.Get("/{id}", h.showGrant)
		r.Get("/users/{userID}", h.listUserGrants)
		r.Get("/users/{userID}/regions", h.listUserRegions)
	})
}

func (h *Handler) createGrant(w http.ResponseWriter, r *http.Request) {
	var req CreateGrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	grant, err := h.service.Create(r.Context(), req, actor)
	if err != nil {
		h.respondError(w, "create grant", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grant)
}

func (h *Handler) revokeGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.grantID(w, r)
	if !ok {
		return
	}
	var req RevokeGrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	grant, err := h.service.Revoke(r.Context(), id, actor, req.Reason)
	if err != nil {
		h.respondError(w, "revoke grant", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grant)
}

func (h *Handler) extendGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.grantID(w, r)
	if !ok {
		return
	}
	var req ExtendGrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := authz.ActorFromContext(r.Context())
	grant, err := h.service.Extend(r.Context(), id, req.NewExpiresAt, actor)
	if err != nil {
		h.respondError(w, "extend grant", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grant)
}

func (h *Handler) showGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.grantID(w, r)
	if !ok {
		return
	}
	grant, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get grant", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grant)
}

func (h *Handler) listUserGrants(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	grants, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, "list grants", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grants)
}

type regionsResponse struct {
	UserID  int64     `json:"user_id"`
	Regions []string  `json:"regions"`
	AsOf    time.Time `json:"as_of"`
}

func (h *Handler) listUserRegions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	now := h.service.Now()
	regions, err := h.service.ListActiveRegionsFor(r.Context(), userID, now)
	if err != nil {
		h.respondError(w, "list regions", err)
		return
	}
	if regions == nil {
		regions = []string{}
	}
	httpx.JSON(w, http.StatusOK, regionsResponse{UserID: userID, Regions: regions, AsOf: now})
}

func (h *Handler) grantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid grant id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrExpiryInPast), errors.Is(err, ErrExtendNotLater):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotActive), errors.Is(err, ErrConflict), errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
