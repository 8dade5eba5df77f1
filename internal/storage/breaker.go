package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/org/authcore/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// BreakerConfig tunes the circuit breaker guarding a UserStore.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker. Zero means 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing. Zero means 10s.
	OpenTimeout time.Duration
}

// BreakerStore wraps a UserStore so that a failing backend is reported as
// ErrUnavailable immediately instead of being hammered on every request.
type BreakerStore struct {
	inner UserStore
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps inner with a circuit breaker.
func NewBreakerStore(inner UserStore, cfg BreakerConfig) *BreakerStore {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 10 * time.Second
	}
	threshold := cfg.ConsecutiveFailures
	settings := gobreaker.Settings{
		Name:        "user-store",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("logger", "storage").Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrAlreadyExists) ||
				errors.Is(err, context.Canceled)
		},
	}
	return &BreakerStore{inner: inner, cb: gobreaker.NewCircuitBreaker(settings)}
}

// State exposes the breaker state for health reporting.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return b.user(func() (*models.User, error) { return b.inner.UserByID(ctx, id) })
}

func (b *BreakerStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return b.user(func() (*models.User, error) { return b.inner.UserByEmail(ctx, email) })
}

func (b *BreakerStore) CreateUser(ctx context.Context, email, passwordHash string, roles []string) (*models.User, error) {
	return b.user(func() (*models.User, error) { return b.inner.CreateUser(ctx, email, passwordHash, roles) })
}

func (b *BreakerStore) Ping(ctx context.Context) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.inner.Ping(ctx)
	})
	return b.translate(err)
}

func (b *BreakerStore) Close() error {
	return b.inner.Close()
}

func (b *BreakerStore) user(fn func() (*models.User, error)) (*models.User, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return nil, b.translate(err)
	}
	u, _ := res.(*models.User)
	return u, nil
}

func (b *BreakerStore) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
