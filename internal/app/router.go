package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gridscape/gridscape/internal/authz"
	"github.com/gridscape/gridscape/internal/grants"
	"github.com/gridscape/gridscape/internal/groups"
	"github.com/gridscape/gridscape/internal/observability"
	"github.com/gridscape/gridscape/internal/users"
	"github.com/gridscape/gridscape/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Guard         authz.Middleware
	AuthzHandler  *authz.Handler
	GrantsHandler *grants.Handler
	UsersHandler  *users.Handler
	GroupsHandler *groups.Handler
	JobHandler    *jobs.Handler
	Metrics       *observability.Metrics
}

// NewRouter constructs the chi.Router with Gridscape defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// Everything below carries a gateway-provided identity.
	r.Group(func(r chi.Router) {
		r.Use(params.Guard.Identify)

		r.Route("/authz", params.AuthzHandler.MountRoutes)
		r.Route("/grants", params.GrantsHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/groups", params.GroupsHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
