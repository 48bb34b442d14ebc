package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// IdentityHeader carries the authenticated user id, set by the fronting
// gateway after session validation. This core does not authenticate.
const IdentityHeader = "X-Gridscape-User"

type actorContextKey struct{}

// ContextWithActor stores the acting user id in context.
func ContextWithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext extracts the acting user id from context.
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorContextKey{}).(int64)
	return id, ok
}

// Middleware wires authorization guards for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Identify parses the identity header and stores the actor in context.
// Requests without a parseable identity are rejected.
func (m Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(IdentityHeader))
		if raw == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			if m.Logger != nil {
				m.Logger.Warn("authz parse identity header", slog.String("value", raw))
			}
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), id)))
	})
}

// RequireAll ensures the current actor holds every listed permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.guard(perms, func(ctx context.Context, userID int64, targets []string) (bool, error) {
		return m.Service.HasAllPermissions(ctx, userID, targets)
	})
}

// RequireAny ensures the current actor holds at least one listed
// permission.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.guard(perms, func(ctx context.Context, userID int64, targets []string) (bool, error) {
		return m.Service.HasAnyPermission(ctx, userID, targets)
	})
}

func (m Middleware) guard(perms []string, check func(context.Context, int64, []string) (bool, error)) func(http.Handler) http.Handler {
	targets := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p != "" {
			targets = append(targets, p)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(targets) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			allowed, err := check(r.Context(), userID, targets)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz guard", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
