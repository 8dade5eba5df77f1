package api

import (
	"net/http"
)

// InvoicesHandler handles GET /common/payments/invoices
func (s *Server) InvoicesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"invoices": []any{}})
}

// RefundHandler handles POST /common/payments/refund
func (s *Server) RefundHandler(w http.ResponseWriter, r *http.Request) {
	actor := userFromCtx(r.Context()).Email
	target := "demo"
	s.audit.Record("payments.refund", &actor, &target, nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "refunded", "id": target})
}

// AnalyticsEventHandler handles POST /common/analytics/events
func (s *Server) AnalyticsEventHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// HelloHandler handles GET /service1/hello
func (s *Server) HelloHandler(w http.ResponseWriter, r *http.Request) {
	if user := userFromCtx(r.Context()); user != nil {
		writeJSON(w, http.StatusOK, map[string]any{"message": "hello, " + user.Email})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "hello, guest"})
}

// ListItemsHandler handles GET /service1/items
func (s *Server) ListItemsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items": []map[string]any{{"id": 1, "name": "demo"}},
	})
}

// CreateItemHandler handles POST /service1/items
func (s *Server) CreateItemHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"created": map[string]any{"id": 2, "name": "new"},
	})
}

// AdminOnlyHandler handles GET /service1/admin
func (s *Server) AdminOnlyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
