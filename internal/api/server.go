package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/org/authcore/internal/auth"
	"github.com/org/authcore/internal/config"
	"github.com/org/authcore/internal/ratelimit"
	"github.com/org/authcore/internal/storage"
	"github.com/org/authcore/internal/telemetry"
	"github.com/org/authcore/pkg/models"
	"github.com/rs/zerolog/log"
)

// Version is reported by /common/version. Overridden at build time with -ldflags.
var Version = "0.1.0"

// Telemetry groups the buffers owned by the process. Nil members are created by NewServer.
type Telemetry struct {
	Metrics *telemetry.Registry
	Audit   *telemetry.AuditLog
	Logs    *telemetry.LogBuffer
}

// Server is the API server.
type Server struct {
	cfg      config.Config
	store    storage.UserStore
	tokens   *auth.TokenService
	resolver *auth.Resolver
	accounts *auth.Accounts
	limiter  *ratelimit.Limiter
	metrics  *httpMetrics
	audit    *telemetry.AuditLog
	logs     *telemetry.LogBuffer
	httpSrv  *http.Server
}

// NewServer creates a fully wired Server.
func NewServer(store storage.UserStore, cfg config.Config, tel Telemetry) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.SecretKey,
		auth.WithAccessTTL(cfg.AccessTTL()),
		auth.WithRefreshTTL(cfg.RefreshTTL()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	if tel.Metrics == nil {
		tel.Metrics = telemetry.NewRegistry()
	}
	if tel.Audit == nil {
		tel.Audit = telemetry.NewAuditLog(cfg.AuditCapacity)
	}
	if tel.Logs == nil {
		tel.Logs = telemetry.NewLogBuffer(cfg.LogBufferCapacity, cfg.Level())
	}

	return &Server{
		cfg:      cfg,
		store:    store,
		tokens:   tokens,
		resolver: auth.NewResolver(tokens, store),
		accounts: auth.NewAccounts(store, tokens, cfg.DefaultRoles),
		limiter:  ratelimit.New(cfg.RateLimitMax, cfg.RateWindow()),
		metrics:  newHTTPMetrics(tel.Metrics),
		audit:    tel.Audit,
		logs:     tel.Logs,
	}, nil
}

// Limiter exposes the rate limiter so the caller can run its sweeper.
func (s *Server) Limiter() *ratelimit.Limiter {
	return s.limiter
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	if s.cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(s.metrics.middleware)
	r.Use(recoverMiddleware)
	r.Use(corsMiddleware(s.cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(s.limiter))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	authenticated := requireMiddleware(auth.RequireAuth(s.resolver))
	admin := requireMiddleware(auth.RequireRoles(s.resolver, models.RoleAdmin))
	billing := requireMiddleware(auth.RequireRoles(s.resolver, "billing", models.RoleAdmin))
	analyst := requireMiddleware(auth.RequireRoles(s.resolver, "analyst", models.RoleAdmin))
	member := requireMiddleware(auth.RequireRoles(s.resolver, "user", models.RoleAdmin))
	optional := optionalUserMiddleware(s.resolver)

	// Prometheus scrape endpoint (unauthenticated)
	r.Handle("/metrics", s.metrics.handler())
	r.Get("/health", s.HealthHandler)

	r.Route("/common", func(r chi.Router) {
		// Public
		r.Get("/health", s.HealthHandler)
		r.Get("/health/deep", s.DeepHealthHandler)
		r.Get("/readiness", s.ReadinessHandler)
		r.Get("/liveness", s.LivenessHandler)
		r.Get("/ping", s.PingHandler)
		r.Get("/time", s.TimeHandler)
		r.Get("/uuid", s.UUIDHandler)
		r.Get("/ip", s.IPHandler)
		r.Get("/headers", s.HeadersHandler)
		r.Post("/echo", s.EchoHandler)
		r.Get("/version", s.VersionHandler)
		r.Get("/uptime", s.UptimeHandler)
		r.Post("/base64/encode", s.Base64EncodeHandler)
		r.Post("/base64/decode", s.Base64DecodeHandler)
		r.Get("/metrics", s.MetricsJSONHandler)
		r.Get("/metrics/prometheus", s.MetricsTextHandler)

		r.Post("/auth/register", s.RegisterHandler)
		r.Post("/auth/login", s.LoginHandler)
		r.Post("/auth/refresh", s.RefreshHandler)
		r.With(authenticated).Get("/auth/me", s.MeHandler)

		r.With(optional).Get("/whoami", s.WhoAmIHandler)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Get("/audit/events", s.AuditListHandler)
			r.Post("/audit/events", s.AuditRecordHandler)
			r.Get("/logs", s.LogsHandler)
			r.Post("/logs/level", s.LogLevelHandler)
			r.Get("/config", s.ConfigHandler)
			r.Get("/env", s.EnvHandler)
			r.Post("/crypto/hash", s.HashHandler)
			r.Post("/crypto/verify", s.VerifyHandler)
		})

		r.With(billing).Get("/payments/invoices", s.InvoicesHandler)
		r.With(billing).Post("/payments/refund", s.RefundHandler)
		r.With(analyst).Post("/analytics/events", s.AnalyticsEventHandler)
	})

	r.Route("/service1", func(r chi.Router) {
		r.With(optional).Get("/hello", s.HelloHandler)
		r.Get("/items", s.ListItemsHandler)
		r.With(member).Post("/items", s.CreateItemHandler)
		r.With(admin).Get("/admin", s.AdminOnlyHandler)
	})

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	handler := s.BuildRouter()

	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		tlsCfg := &tls.Config{
			MinVersion: tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
		}
		s.httpSrv.TLSConfig = tlsCfg
		log.Info().Str("logger", "server").Str("addr", s.cfg.ListenAddr).Msg("starting HTTPS server")
		return s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}

	log.Info().Str("logger", "server").Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
