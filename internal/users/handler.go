package users

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gridscape/gridscape/internal/authz"
	"github.com/gridscape/gridscape/internal/platform/httpx"
)

// Handler exposes read-only user endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   *authz.Service
	guard   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authzService *authz.Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authzService, guard: guard}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(authz.PermUsersView, authz.PermUsersManage))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.showUser)
		r.Get("/{id}/permissions", h.showPermissions)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get user", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type permissionsResponse struct {
	UserID   int64    `json:"user_id"`
	Patterns []string `json:"patterns"`
	Expanded []string `json:"expanded"`
}

func (h *Handler) showPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	set, err := h.authz.EffectivePermissions(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("effective permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	patterns := set.Patterns()
	sort.Strings(patterns)
	universe := authz.AllScopes()
	expandedSet := authz.NewPermissionSet()
	for _, pattern := range patterns {
		expandedSet.AddAll(authz.ExpandWildcard(pattern, universe))
	}
	expanded := expandedSet.Patterns()
	sort.Strings(expanded)

	httpx.JSON(w, http.StatusOK, permissionsResponse{UserID: id, Patterns: patterns, Expanded: expanded})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return 0, false
	}
	return id, true
}
