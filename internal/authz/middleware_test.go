package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestIdentifyRejectsMissingHeader(t *testing.T) {
	mw := Middleware{}
	next, called := okHandler()

	rr := httptest.NewRecorder()
	mw.Identify(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, *called)
}

func TestIdentifyRejectsMalformedHeader(t *testing.T) {
	mw := Middleware{}
	next, called := okHandler()

	for _, raw := range []string{"abc", "-1", "0", "1.5"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(IdentityHeader, raw)
		rr := httptest.NewRecorder()
		mw.Identify(next).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "header %q", raw)
	}
	assert.False(t, *called)
}

func TestIdentifyStoresActor(t *testing.T) {
	mw := Middleware{}
	var actor int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := ActorFromContext(r.Context())
		require.True(t, ok)
		actor = id
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(IdentityHeader, "42")
	mw.Identify(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, int64(42), actor)
}

func TestGuardRequiresActor(t *testing.T) {
	svc, _ := newTestAuthzService(map[int64]Principal{
		1: {ID: 1, Role: RoleAdmin},
	}, nil, ServiceConfig{})
	mw := Middleware{Service: svc}
	next, called := okHandler()

	rr := httptest.NewRecorder()
	mw.RequireAll(PermUsersView)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, *called)
}

func TestGuardAllowsAndDenies(t *testing.T) {
	svc, _ := newTestAuthzService(map[int64]Principal{
		1: {ID: 1, Role: RoleManager},
		2: {ID: 2, Role: RoleUser},
	}, nil, ServiceConfig{})
	mw := Middleware{Service: svc}

	next, called := okHandler()
	guard := mw.RequireAll(PermUsersView)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithActor(req.Context(), 1))
	rr := httptest.NewRecorder()
	guard.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, *called)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithActor(req.Context(), 2))
	rr = httptest.NewRecorder()
	guard.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestGuardRequireAny(t *testing.T) {
	svc, _ := newTestAuthzService(map[int64]Principal{
		2: {ID: 2, Role: RoleUser},
	}, nil, ServiceConfig{})
	mw := Middleware{Service: svc}

	next, _ := okHandler()
	guard := mw.RequireAny(PermUsersView, PermMapLayersView)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithActor(req.Context(), 2))
	rr := httptest.NewRecorder()
	guard.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "user role holds map.layers.view")
}

func TestGuardWithoutTargetsPassesThrough(t *testing.T) {
	mw := Middleware{}
	next, called := okHandler()

	rr := httptest.NewRecorder()
	mw.RequireAll()(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, *called)
}
