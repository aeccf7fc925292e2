package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"despesas/internal/identity"
	"despesas/internal/session"
)

type contextKey string

const userContextKey contextKey = "user"

// requireAuth verifies the Bearer token and attaches the user and their live
// session to the request. A valid token from a previous process lifetime
// re-opens the session on first use.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		user, err := s.auth.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

func userFrom(r *http.Request) identity.User {
	u, _ := r.Context().Value(userContextKey).(identity.User)
	return u
}

// sessionFor returns the caller's live session, opening one if the token
// outlived the process that issued it.
func (s *Server) sessionFor(r *http.Request) (*session.Session, error) {
	return s.sessions.Open(r.Context(), userFrom(r).UID)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := s.auth.Register(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
		return
	case errors.Is(err, identity.ErrWeakPassword):
		writeError(w, http.StatusUnprocessableEntity, "password too weak")
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{UID: user.UID, Email: user.Email, Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{UID: user.UID, Email: user.Email, Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.SignOut(r.Context(), userFrom(r))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
