package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// HealthHandler handles GET /health and GET /common/health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) pingStore(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		log.Warn().Str("logger", "storage").Err(err).Msg("store ping failed")
		return false
	}
	return true
}

// DeepHealthHandler handles GET /common/health/deep
func (s *Server) DeepHealthHandler(w http.ResponseWriter, r *http.Request) {
	if s.pingStore(r.Context()) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "db": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "degraded", "db": false})
}

// ReadinessHandler handles GET /common/readiness
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ready": s.pingStore(r.Context())})
}

// LivenessHandler handles GET /common/liveness
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"alive": true})
}

// PingHandler handles GET /common/ping
func (s *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pong": true})
}

// TimeHandler handles GET /common/time
func (s *Server) TimeHandler(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	writeJSON(w, http.StatusOK, map[string]any{
		"utc_iso": now.Format(time.RFC3339Nano),
		"epoch":   now.Unix(),
	})
}

// UUIDHandler handles GET /common/uuid
func (s *Server) UUIDHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"uuid": uuid.NewString()})
}

// IPHandler handles GET /common/ip
func (s *Server) IPHandler(w http.ResponseWriter, r *http.Request) {
	var ip any
	if host := clientHost(r); host != "" {
		ip = host
	}
	writeJSON(w, http.StatusOK, map[string]any{"ip": ip})
}

// HeadersHandler handles GET /common/headers
func (s *Server) HeadersHandler(w http.ResponseWriter, r *http.Request) {
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	writeJSON(w, http.StatusOK, map[string]any{"headers": headers})
}

// EchoHandler handles POST /common/echo
func (s *Server) EchoHandler(w http.ResponseWriter, r *http.Request) {
	var payload any
	if err := decodeJSON(w, r, &payload); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"echo": payload})
}

// VersionHandler handles GET /common/version
func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "authcore",
		"version": Version,
		"env":     s.cfg.Env,
		"debug":   s.cfg.Debug,
	})
}

// UptimeHandler handles GET /common/uptime
func (s *Server) UptimeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"uptime_seconds": s.metrics.counters.Uptime()})
}

// Base64EncodeHandler handles POST /common/base64/encode
func (s *Server) Base64EncodeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"encoded": base64.StdEncoding.EncodeToString([]byte(req.Text))})
}

// Base64DecodeHandler handles POST /common/base64/decode. Undecodable input yields null.
func (s *Server) Base64DecodeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var decoded any
	if b, err := base64.StdEncoding.DecodeString(req.Text); err == nil && utf8.Valid(b) {
		decoded = string(b)
	}
	writeJSON(w, http.StatusOK, map[string]any{"decoded": decoded})
}

// MetricsJSONHandler handles GET /common/metrics
func (s *Server) MetricsJSONHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.counters.Snapshot())
}

// MetricsTextHandler handles GET /common/metrics/prometheus
func (s *Server) MetricsTextHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.metrics.counters.Render()))
}

// ConfigHandler handles GET /common/config
func (s *Server) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Sanitized())
}

// EnvHandler handles GET /common/env. Values of secret-looking variables are masked.
func (s *Server) EnvHandler(w http.ResponseWriter, r *http.Request) {
	env := map[string]string{}
	keys := []string{}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(k, "APP_") {
			continue
		}
		if isSensitive(k) {
			v = "***"
		}
		env[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeJSON(w, http.StatusOK, map[string]any{"env": env, "keys": keys})
}

func isSensitive(key string) bool {
	key = strings.ToUpper(key)
	for _, marker := range []string{"SECRET", "PASSWORD", "TOKEN", "DB_URL"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
