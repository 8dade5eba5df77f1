// Package config loads server configuration from a yaml file and APP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "APP_"

// DefaultSecretKey is the development signing secret. Production refuses to start with it.
const DefaultSecretKey = "changeme-secret"

// Config holds server configuration.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	TLSCertFile string `yaml:"tls_cert"`
	TLSKeyFile  string `yaml:"tls_key"`
	Env         string `yaml:"env"`
	Debug       bool   `yaml:"debug"`

	SecretKey                  string   `yaml:"secret_key"`
	AccessTokenExpiresMinutes  int      `yaml:"access_token_expires_minutes"`
	RefreshTokenExpiresMinutes int      `yaml:"refresh_token_expires_minutes"`
	DefaultRoles               []string `yaml:"default_roles"`

	CORSOrigins            []string `yaml:"cors_origins"`
	RateLimitMax           int      `yaml:"rate_limit_max"`
	RateLimitWindow        int      `yaml:"rate_limit_window"`
	RateLimitSweepInterval int      `yaml:"rate_limit_sweep_interval"`
	TrustProxyHeaders      bool     `yaml:"trust_proxy_headers"`

	DBUrl         string `yaml:"db_url"`
	MigrationsDir string `yaml:"migrations_dir"`

	BreakerFailures       uint32 `yaml:"breaker_failures"`
	BreakerTimeoutSeconds int    `yaml:"breaker_timeout_seconds"`

	LogLevel          string `yaml:"log_level"`
	LogBufferCapacity int    `yaml:"log_buffer_capacity"`
	AuditCapacity     int    `yaml:"audit_capacity"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		ListenAddr:                 ":8000",
		Env:                        "local",
		Debug:                      true,
		SecretKey:                  DefaultSecretKey,
		AccessTokenExpiresMinutes:  30,
		RefreshTokenExpiresMinutes: 60 * 24 * 7,
		DefaultRoles:               []string{"user"},
		CORSOrigins:                []string{"*"},
		RateLimitMax:               60,
		RateLimitWindow:            60,
		RateLimitSweepInterval:     60,
		MigrationsDir:              "migrations",
		BreakerFailures:            5,
		BreakerTimeoutSeconds:      10,
		LogLevel:                   "info",
		LogBufferCapacity:          1000,
		AuditCapacity:              1000,
	}
}

// Load reads the yaml file at path on top of Default and then applies environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("logger", "config").Str("file", path).Msg("config file not found, using defaults")
	default:
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from APP_<KEY> variables, KEY being the upper-cased yaml key.
// DATABASE_URL is honoured for db_url as well. List values are comma separated.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = splitList(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("LISTEN_ADDR", &c.ListenAddr)
	str("TLS_CERT", &c.TLSCertFile)
	str("TLS_KEY", &c.TLSKeyFile)
	str("ENV", &c.Env)
	flag("DEBUG", &c.Debug)
	str("SECRET_KEY", &c.SecretKey)
	num("ACCESS_TOKEN_EXPIRES_MINUTES", &c.AccessTokenExpiresMinutes)
	num("REFRESH_TOKEN_EXPIRES_MINUTES", &c.RefreshTokenExpiresMinutes)
	list("DEFAULT_ROLES", &c.DefaultRoles)
	list("CORS_ORIGINS", &c.CORSOrigins)
	num("RATE_LIMIT_MAX", &c.RateLimitMax)
	num("RATE_LIMIT_WINDOW", &c.RateLimitWindow)
	num("RATE_LIMIT_SWEEP_INTERVAL", &c.RateLimitSweepInterval)
	flag("TRUST_PROXY_HEADERS", &c.TrustProxyHeaders)
	if v, ok := lookup("DATABASE_URL"); ok {
		c.DBUrl = v
	}
	str("DB_URL", &c.DBUrl)
	str("MIGRATIONS_DIR", &c.MigrationsDir)
	failures := int(c.BreakerFailures)
	num("BREAKER_FAILURES", &failures)
	if failures < 0 {
		errs = append(errs, fmt.Errorf("%sBREAKER_FAILURES: must not be negative", EnvPrefix))
	} else {
		c.BreakerFailures = uint32(failures)
	}
	num("BREAKER_TIMEOUT_SECONDS", &c.BreakerTimeoutSeconds)
	str("LOG_LEVEL", &c.LogLevel)
	num("LOG_BUFFER_CAPACITY", &c.LogBufferCapacity)
	num("AUDIT_CAPACITY", &c.AuditCapacity)

	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.SecretKey) == "" {
		errs = append(errs, errors.New("secret_key must not be empty"))
	}
	if c.IsProduction() && c.SecretKey == DefaultSecretKey {
		errs = append(errs, errors.New("secret_key must be changed in production"))
	}
	if c.AccessTokenExpiresMinutes <= 0 {
		errs = append(errs, errors.New("access_token_expires_minutes must be positive"))
	}
	if c.RefreshTokenExpiresMinutes <= 0 {
		errs = append(errs, errors.New("refresh_token_expires_minutes must be positive"))
	}
	if c.RateLimitMax <= 0 {
		errs = append(errs, errors.New("rate_limit_max must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate_limit_window must be positive"))
	}
	if c.RateLimitSweepInterval < 0 {
		errs = append(errs, errors.New("rate_limit_sweep_interval must not be negative"))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("tls_cert and tls_key must be set together"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether env names a production deployment.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// AccessTTL returns the access token lifetime.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpiresMinutes) * time.Minute
}

// RefreshTTL returns the refresh token lifetime.
func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpiresMinutes) * time.Minute
}

// RateWindow returns the rate limit window.
func (c Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimitWindow) * time.Second
}

// SweepInterval returns how often idle rate limit windows are dropped. Zero means one window.
func (c Config) SweepInterval() time.Duration {
	if c.RateLimitSweepInterval == 0 {
		return c.RateWindow()
	}
	return time.Duration(c.RateLimitSweepInterval) * time.Second
}

// Level returns the parsed log level, falling back to info.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Sanitized is the view of the configuration safe to return to administrators.
type Sanitized struct {
	Env                        string   `json:"env"`
	Debug                      bool     `json:"debug"`
	CORSOrigins                []string `json:"cors_origins"`
	RateLimitMax               int      `json:"rate_limit_max"`
	RateLimitWindow            int      `json:"rate_limit_window"`
	DatabaseURL                string   `json:"database_url"`
	AccessTokenExpiresMinutes  int      `json:"access_token_expires_minutes"`
	RefreshTokenExpiresMinutes int      `json:"refresh_token_expires_minutes"`
	DefaultRoles               []string `json:"default_roles"`
}

// Sanitized drops the signing secret and masks the database password.
func (c Config) Sanitized() Sanitized {
	db := "memory"
	if c.DBUrl != "" {
		db = RedactURL(c.DBUrl)
	}
	return Sanitized{
		Env:                        c.Env,
		Debug:                      c.Debug,
		CORSOrigins:                append([]string{}, c.CORSOrigins...),
		RateLimitMax:               c.RateLimitMax,
		RateLimitWindow:            c.RateLimitWindow,
		DatabaseURL:                db,
		AccessTokenExpiresMinutes:  c.AccessTokenExpiresMinutes,
		RefreshTokenExpiresMinutes: c.RefreshTokenExpiresMinutes,
		DefaultRoles:               append([]string{}, c.DefaultRoles...),
	}
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
