package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/org/authcore/internal/auth"
	"github.com/rs/zerolog/log"
)

type credentials struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterHandler handles POST /common/auth/register
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}

	user, err := s.accounts.Register(r.Context(), email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "Email already registered")
		return
	case err != nil:
		writeAuthError(w, err)
		return
	}

	s.audit.Record("auth.register", &user.Email, nil, nil)
	log.Info().Str("logger", "auth").Int64("user_id", user.ID).Msg("user registered")
	writeJSON(w, http.StatusOK, user.Public())
}

// LoginHandler handles POST /common/auth/login. Accepts an OAuth2 password form
// (username, password) or a JSON body.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}

	pair, user, err := s.accounts.Login(r.Context(), email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			target := strings.ToLower(strings.TrimSpace(email))
			s.audit.Record("auth.login_failed", nil, &target, map[string]any{"client": clientHost(r)})
		}
		writeAuthError(w, err)
		return
	}

	s.audit.Record("auth.login", &user.Email, nil, nil)
	writeJSON(w, http.StatusOK, pair)
}

// RefreshHandler handles POST /common/auth/refresh
func (s *Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := s.tokens.Refresh(req.RefreshToken)
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		if auth.ReasonOf(err) == auth.ReasonWrongType {
			writeError(w, http.StatusUnauthorized, "Invalid token type")
			return
		}
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	if claims, err := s.tokens.Verify(pair.AccessToken); err == nil {
		s.audit.Record("auth.refresh", nil, nil, map[string]any{"sub": claims.Subject})
	}
	writeJSON(w, http.StatusOK, pair)
}

// MeHandler handles GET /common/auth/me
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFromCtx(r.Context()).Public())
}

// WhoAmIHandler handles GET /common/whoami
func (s *Server) WhoAmIHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": user.Public()})
}
