package http

import (
	"errors"
	"net/http"

	"society/internal/auth"
	applog "society/internal/log"
)

type landing struct {
	Name    string `json:"name"`
	SignIn  string `json:"signIn"`
	Version string `json:"version,omitempty"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *auth.User `json:"user"`
	Token         string     `json:"token,omitempty"`
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(landing{Name: "Society Management", SignIn: auth.SignInPath}).Write(w)
}

// handleSession reports who the request is signed in as, if anyone.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	state := s.sessions.Current(r)
	NewResponse().JSON(sessionResponse{Authenticated: state.User != nil, User: state.User}).Write(w)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	email := sanitizeInput(req.Email)
	if email == "" || req.Password == "" {
		UnprocessableEntityError("email and password are required").Write(w)
		return
	}

	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth)
	u, err := s.authn.SignIn(r.Context(), email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.WarnContext(r.Context(), "Sign-in rejected", applog.FieldOperation, applog.OpSignIn)
		}
		writeError(w, r, err)
		return
	}
	token, err := s.sessions.Start(w, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.InfoContext(r.Context(), "Signed in", applog.FieldOperation, applog.OpSignIn, applog.FieldUserID, u.ID)
	NewResponse().JSON(sessionResponse{Authenticated: true, User: u, Token: token}).Write(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.sessions.End(w)
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// handleProfile returns the signed-in user. The guard guarantees one.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		ErrorResponse(http.StatusUnauthorized, "Unauthorized").Write(w)
		return
	}
	NewResponse().JSON(u).Write(w)
}
