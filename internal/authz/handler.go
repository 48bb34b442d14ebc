package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gridscape/gridscape/internal/platform/httpx"
)

// Handler exposes the authorization decision endpoints consumed by the
// UI and service layers.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers authorization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.check)
	r.Post("/check-all", h.checkMany(h.service.HasAllPermissions))
	r.Post("/check-any", h.checkMany(h.service.HasAnyPermission))
	r.Post("/authorize", h.authorize)
	r.Post("/region", h.checkRegion)
	r.Get("/catalog", h.catalog)
}

type checkRequest struct {
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	Permission string `json:"permission" validate:"required"`
}

type checkManyRequest struct {
	UserID      int64    `json:"user_id" validate:"required,gt=0"`
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
}

type authorizeRequest struct {
	UserID        int64   `json:"user_id" validate:"required,gt=0"`
	Permission    string  `json:"permission" validate:"required"`
	OwnerID       int64   `json:"owner_id,omitempty" validate:"omitempty,gt=0"`
	TeamMemberIDs []int64 `json:"team_member_ids,omitempty"`
}

type regionRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Region string `json:"region" validate:"required"`
}

type decisionResponse struct {
	Allowed bool `json:"allowed"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !IsValidPermissionID(req.Permission) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed permission identifier")
		return
	}
	allowed, err := h.service.HasPermission(r.Context(), req.UserID, req.Permission)
	if err != nil {
		h.fail(w, "authz check", err)
		return
	}
	httpx.JSON(w, http.StatusOK, decisionResponse{Allowed: allowed})
}

func (h *Handler) checkMany(decide func(ctx context.Context, userID int64, targets []string) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkManyRequest
		if !h.decode(w, r, &req) {
			return
		}
		for _, p := range req.Permissions {
			if !IsValidPermissionID(p) {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed permission identifier: "+p)
				return
			}
		}
		allowed, err := decide(r.Context(), req.UserID, req.Permissions)
		if err != nil {
			h.fail(w, "authz check many", err)
			return
		}
		httpx.JSON(w, http.StatusOK, decisionResponse{Allowed: allowed})
	}
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Authorize(r.Context(), req.UserID, req.Permission, req.OwnerID, req.TeamMemberIDs)
	if err != nil {
		h.fail(w, "authz authorize", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) checkRegion(w http.ResponseWriter, r *http.Request) {
	var req regionRequest
	if !h.decode(w, r, &req) {
		return
	}
	allowed, err := h.service.CanAccessRegion(r.Context(), req.UserID, req.Region)
	if err != nil {
		h.fail(w, "authz region", err)
		return
	}
	httpx.JSON(w, http.StatusOK, decisionResponse{Allowed: allowed})
}

type catalogResponse struct {
	Permissions []string          `json:"permissions"`
	Roles       map[string][]string `json:"roles"`
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	roles := map[string][]string{}
	for _, role := range []Role{RoleAdmin, RoleManager, RoleTechnician, RoleUser} {
		roles[string(role)] = RoleDefaults(role)
	}
	httpx.JSON(w, http.StatusOK, catalogResponse{Permissions: AllScopes(), Roles: roles})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	httpx.RespondError(w, err)
}
