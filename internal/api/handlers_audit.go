package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/org/authcore/internal/crypto"
	"github.com/org/authcore/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultQueryLimit = 200

// queryLimit parses ?limit=, defaulting to 200. ok is false for non-numeric or non-positive values.
func queryLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultQueryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// AuditListHandler handles GET /common/audit/events
func (s *Server) AuditListHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": s.audit.Recent(limit)})
}

// AuditRecordHandler handles POST /common/audit/events
func (s *Server) AuditRecordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action   string         `json:"action"`
		Target   *string        `json:"target"`
		Metadata map[string]any `json:"metadata"`
		Meta     map[string]any `json:"meta"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}
	meta := req.Metadata
	if meta == nil {
		meta = req.Meta
	}

	actor := userFromCtx(r.Context()).Email
	ev := s.audit.Record(req.Action, &actor, req.Target, meta)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": ev.ID})
}

// LogsHandler handles GET /common/logs
func (s *Server) LogsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": s.logs.Fetch(limit, r.URL.Query().Get("level"))})
}

// LogLevelHandler handles POST /common/logs/level. Only the root logger is adjustable.
func (s *Server) LogLevelHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Level string `json:"level"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != "" && req.Name != telemetry.RootLogger {
		writeError(w, http.StatusBadRequest, "only the root logger level can be changed")
		return
	}
	level, err := parseLevel(req.Level)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown log level")
		return
	}
	zerolog.SetGlobalLevel(level)
	actor := userFromCtx(r.Context()).Email
	s.audit.Record("logs.level", &actor, nil, map[string]any{"level": level.String()})
	log.Info().Str("logger", "server").Str("level", level.String()).Msg("log level changed")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func parseLevel(raw string) (zerolog.Level, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "warning":
		raw = "warn"
	case "critical":
		raw = "fatal"
	case "":
		return zerolog.NoLevel, strconv.ErrSyntax
	}
	return zerolog.ParseLevel(raw)
}

// HashHandler handles POST /common/crypto/hash
func (s *Server) HashHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	digest, err := crypto.HashPassword(req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hash": digest})
}

// VerifyHandler handles POST /common/crypto/verify
func (s *Server) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string `json:"text"`
		Hashed string `json:"hashed"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": crypto.VerifyPassword(req.Hashed, req.Text)})
}
