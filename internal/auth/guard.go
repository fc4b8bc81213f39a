// Package auth decides whether a request may see a guarded page and
// manages the sessions that answer that question.
package auth

import (
	"context"
	"net/http"
	"sync"

	"society/internal/activity"
	"society/internal/core"
)

const (
	PublicPath = "/"
	SignInPath = "/auth"
)

type User struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	Role     core.Role `json:"role"`
}

// State is the authentication state observed for one request or client.
// While Loading is set the user is not yet known.
type State struct {
	User    *User
	Loading bool
}

// Provider reports the authentication state of a request.
type Provider interface {
	Current(r *http.Request) State
}

type Outcome int

const (
	// OutcomeRender shows the protected content.
	OutcomeRender Outcome = iota
	// OutcomePlaceholder shows a loading indicator and does not navigate.
	OutcomePlaceholder
	// OutcomeRedirect renders nothing and sends the client to SignInPath.
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlaceholder:
		return "placeholder"
	case OutcomeRedirect:
		return "redirect"
	default:
		return "render"
	}
}

// Navigator performs client-side navigation.
type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Guard evaluates the protected-route rule. It never fetches or caches
// sessions; the state is always supplied by the caller.
type Guard struct {
	nav Navigator

	mu       sync.Mutex
	observed bool
	lastUser *User
	lastLoad bool
	lastPath string
}

func NewGuard(nav Navigator) *Guard {
	return &Guard{nav: nav}
}

// Evaluate is pure: loading wins, then an anonymous user outside the
// public and sign-in paths is redirected, everything else renders.
func (g *Guard) Evaluate(state State, path string) Outcome {
	if state.Loading {
		return OutcomePlaceholder
	}
	if state.User == nil && !isOpenPath(path) {
		return OutcomeRedirect
	}
	return OutcomeRender
}

// Observe re-evaluates when the user, the loading flag or the path changed
// since the previous call, and navigates to SignInPath when that
// evaluation redirects. Unchanged inputs never navigate twice.
func (g *Guard) Observe(state State, path string) Outcome {
	outcome := g.Evaluate(state, path)

	g.mu.Lock()
	changed := !g.observed || g.lastUser != state.User || g.lastLoad != state.Loading || g.lastPath != path
	g.observed = true
	g.lastUser, g.lastLoad, g.lastPath = state.User, state.Loading, path
	g.mu.Unlock()

	if changed && outcome == OutcomeRedirect && g.nav != nil {
		g.nav.Navigate(SignInPath)
	}
	return outcome
}

// Middleware applies the guard to HTTP requests: a placeholder becomes 503
// "Loading..." with Retry-After, a redirect becomes 302 to SignInPath with
// an empty body. Rendered requests carry the user in their context.
func (g *Guard) Middleware(p Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := p.Current(r)
			switch g.Evaluate(state, r.URL.Path) {
			case OutcomePlaceholder:
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("Loading..."))
			case OutcomeRedirect:
				w.Header().Set("Location", SignInPath)
				w.WriteHeader(http.StatusFound)
			default:
				if state.User != nil {
					r = r.WithContext(WithUser(r.Context(), state.User))
				}
				next.ServeHTTP(w, r)
			}
		})
	}
}

func isOpenPath(path string) bool {
	return path == PublicPath || path == SignInPath
}

type userKey struct{}

// WithUser stores u in ctx and records it as the acting user for
// activity events.
func WithUser(ctx context.Context, u *User) context.Context {
	ctx = context.WithValue(ctx, userKey{}, u)
	return activity.WithActor(ctx, u.ID)
}

func UserFrom(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey{}).(*User)
	return u, ok && u != nil
}

// RequireRole rejects users that hold none of roles with 403. It must run
// behind the guard middleware.
func RequireRole(roles ...core.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFrom(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if u.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}
