package api

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/org/authcore/internal/auth"
	"github.com/org/authcore/internal/ratelimit"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// errEmptyBody is returned by decodeJSON when the request has no body.
var errEmptyBody = errors.New("empty request body")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

// writeError renders {"detail": msg}.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"detail": msg})
}

// writeFault renders an internal error exposing only a fixed category label.
func writeFault(w http.ResponseWriter, category string) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"detail": "Internal Server Error",
		"error":  category,
	})
}

// writeAuthError maps the auth error taxonomy onto HTTP responses.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "Insufficient role")
	case errors.Is(err, auth.ErrDependencyUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	case errors.Is(err, auth.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "Incorrect credentials")
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "Could not validate credentials")
	case errors.Is(err, ratelimit.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
	default:
		log.Error().Str("logger", "http").Err(err).Msg("unexpected auth failure")
		writeFault(w, "internal")
	}
}

// bearerToken extracts the token of an "Authorization: Bearer" header. The scheme is case-insensitive.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// clientHost returns the caller address without port, or "" when unknown.
// With trust_proxy_headers the RealIP middleware has already rewritten RemoteAddr.
func clientHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
