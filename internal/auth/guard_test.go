package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"society/internal/activity"
	"society/internal/core"
)

type recordingNavigator struct{ paths []string }

func (n *recordingNavigator) Navigate(path string) { n.paths = append(n.paths, path) }

func TestEvaluate(t *testing.T) {
	user := &User{ID: "u1", Role: core.RoleAdmin}
	g := NewGuard(nil)

	tests := []struct {
		name  string
		state State
		path  string
		want  Outcome
	}{
		{"loading wins over anonymous", State{Loading: true}, "/houses", OutcomePlaceholder},
		{"loading with user", State{User: user, Loading: true}, "/houses", OutcomePlaceholder},
		{"anonymous on protected path", State{}, "/dashboard", OutcomeRedirect},
		{"anonymous on sign-in path", State{}, "/auth", OutcomeRender},
		{"anonymous on public path", State{}, "/", OutcomeRender},
		{"signed in", State{User: user}, "/payments", OutcomeRender},
		{"trailing slash is not the sign-in path", State{}, "/auth/", OutcomeRedirect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Evaluate(tt.state, tt.path); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestObserveNavigatesOncePerChange(t *testing.T) {
	nav := &recordingNavigator{}
	g := NewGuard(nav)

	assert.Equal(t, OutcomePlaceholder, g.Observe(State{Loading: true}, "/houses"))
	assert.Empty(t, nav.paths, "placeholder must not navigate")

	assert.Equal(t, OutcomeRedirect, g.Observe(State{}, "/houses"))
	assert.Equal(t, []string{"/auth"}, nav.paths)

	// Same inputs again: no second navigation.
	g.Observe(State{}, "/houses")
	assert.Len(t, nav.paths, 1)

	g.Observe(State{}, "/payments")
	assert.Equal(t, []string{"/auth", "/auth"}, nav.paths)

	g.Observe(State{}, "/auth")
	assert.Len(t, nav.paths, 2)
}

type staticProvider State

func (p staticProvider) Current(*http.Request) State { return State(p) }

func TestMiddleware(t *testing.T) {
	user := &User{ID: "u1", Role: core.RoleMember}
	var seen *User
	var actor string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFrom(r.Context())
		actor = activity.ActorFrom(r.Context())
		w.Write([]byte("ok"))
	})

	t.Run("loading", func(t *testing.T) {
		h := NewGuard(nil).Middleware(staticProvider{Loading: true})(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/houses", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "Loading...", rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("anonymous", func(t *testing.T) {
		h := NewGuard(nil).Middleware(staticProvider{})(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/houses", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/auth", rec.Header().Get("Location"))
		assert.Empty(t, rec.Body.String())
	})

	t.Run("signed in", func(t *testing.T) {
		h := NewGuard(nil).Middleware(staticProvider{User: user})(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/houses", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Same(t, user, seen)
		assert.Equal(t, "u1", actor)
	})
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireRole(core.RoleAdmin)(ok)

	serve := func(ctx context.Context) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/generate", nil).WithContext(ctx))
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(context.Background()))
	assert.Equal(t, http.StatusForbidden, serve(WithUser(context.Background(), &User{ID: "m", Role: core.RoleMember})))
	assert.Equal(t, http.StatusNoContent, serve(WithUser(context.Background(), &User{ID: "a", Role: core.RoleAdmin})))
}

func TestSessions(t *testing.T) {
	tokens := NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	s := NewSessions(tokens, true)
	req := httptest.NewRequest(http.MethodGet, "/houses", nil)

	assert.True(t, s.Current(req).Loading, "sessions report loading until ready")
	s.MarkReady()
	assert.Equal(t, State{}, s.Current(req))

	rec := httptest.NewRecorder()
	token, err := s.Start(rec, &User{ID: "u1", Email: "a@b.c", Role: core.RoleAdmin})
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	withCookie := httptest.NewRequest(http.MethodGet, "/houses", nil)
	withCookie.AddCookie(cookies[0])
	state := s.Current(withCookie)
	require.NotNil(t, state.User)
	assert.Equal(t, "u1", state.User.ID)

	withBearer := httptest.NewRequest(http.MethodGet, "/houses", nil)
	withBearer.Header.Set("Authorization", "Bearer "+token)
	state = s.Current(withBearer)
	require.NotNil(t, state.User)
	assert.Equal(t, core.RoleAdmin, state.User.Role)

	garbage := httptest.NewRequest(http.MethodGet, "/houses", nil)
	garbage.Header.Set("Authorization", "Bearer not-a-token")
	assert.Nil(t, s.Current(garbage).User)

	rec = httptest.NewRecorder()
	s.End(rec)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}
