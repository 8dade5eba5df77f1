package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/org/authcore/internal/api"
	"github.com/org/authcore/internal/config"
	"github.com/org/authcore/internal/storage"
	"github.com/org/authcore/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	cfgFile := "config.yaml"
	if v := os.Getenv("APP_CONFIG"); v != "" {
		cfgFile = v
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Fatal().Str("logger", "config").Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Str("logger", "config").Err(err).Msg("invalid config")
	}

	// Console plus the in-memory buffer served by /common/logs
	logs := telemetry.NewLogBuffer(cfg.LogBufferCapacity, zerolog.InfoLevel)
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stderr}, logs)).
		With().Timestamp().Logger()
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, cfg)
	defer store.Close()

	srv, err := api.NewServer(store, cfg, api.Telemetry{Logs: logs})
	if err != nil {
		log.Fatal().Str("logger", "server").Err(err).Msg("failed to create server")
	}
	go srv.Limiter().Run(ctx, cfg.SweepInterval())

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Str("logger", "server").Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("logger", "server").Str("addr", cfg.ListenAddr).Str("env", cfg.Env).Msg("server started")
	<-ctx.Done()

	log.Info().Str("logger", "server").Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Str("logger", "server").Err(err).Msg("shutdown error")
	}
	log.Info().Str("logger", "server").Msg("server stopped")
}

// openStore connects to Postgres when db_url is set and falls back to the
// in-memory store otherwise. Either way the store sits behind a circuit breaker.
func openStore(ctx context.Context, cfg config.Config) storage.UserStore {
	breaker := storage.BreakerConfig{
		ConsecutiveFailures: cfg.BreakerFailures,
		OpenTimeout:         time.Duration(cfg.BreakerTimeoutSeconds) * time.Second,
	}

	if cfg.DBUrl == "" {
		log.Warn().Str("logger", "storage").Msg("db_url not set, using in-memory user store")
		return storage.NewBreakerStore(storage.NewMemoryStore(), breaker)
	}

	pg, err := storage.OpenPostgres(ctx, cfg.DBUrl)
	if err != nil {
		log.Fatal().Str("logger", "storage").Err(err).Msg("failed to connect to database")
	}
	if err := storage.RunMigrations(cfg.DBUrl, cfg.MigrationsDir); err != nil {
		log.Fatal().Str("logger", "storage").Err(err).Msg("failed to run migrations")
	}
	log.Info().Str("logger", "storage").Str("db", config.RedactURL(cfg.DBUrl)).Msg("migrations applied")
	return storage.NewBreakerStore(pg, breaker)
}
