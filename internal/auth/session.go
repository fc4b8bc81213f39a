package auth

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// CookieName is the cookie carrying the session token.
const CookieName = "session"

// Sessions resolves request state from a bearer token or the session
// cookie. Until MarkReady is called every request reports Loading.
type Sessions struct {
	tokens *TokenIssuer
	secure bool
	ready  atomic.Bool
}

func NewSessions(tokens *TokenIssuer, secureCookie bool) *Sessions {
	return &Sessions{tokens: tokens, secure: secureCookie}
}

// MarkReady ends the loading phase.
func (s *Sessions) MarkReady() { s.ready.Store(true) }

func (s *Sessions) Current(r *http.Request) State {
	if !s.ready.Load() {
		return State{Loading: true}
	}
	raw := tokenFrom(r)
	if raw == "" {
		return State{}
	}
	u, err := s.tokens.Parse(raw)
	if err != nil {
		return State{}
	}
	return State{User: u}
}

// Start issues a token for u and sets it as the session cookie. The token
// is returned for API clients that send it as a bearer.
func (s *Sessions) Start(w http.ResponseWriter, u *User) (string, error) {
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// End clears the session cookie.
func (s *Sessions) End(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
