package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/org/authcore/internal/storage"
	"github.com/org/authcore/pkg/models"
	"github.com/rs/zerolog/log"
)

// UserLookup is the minimal interface the Resolver needs from the user store.
// It returns storage.ErrNotFound for unknown ids.
type UserLookup interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
}

// Resolver turns bearer tokens into users.
type Resolver struct {
	tokens *TokenService
	users  UserLookup
}

// NewResolver creates a Resolver verifying with tokens and looking up users in users.
func NewResolver(tokens *TokenService, users UserLookup) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve returns the user an access token was issued for.
// Token and subject failures match ErrUnauthenticated; store failures match
// ErrDependencyUnavailable.
func (r *Resolver) Resolve(ctx context.Context, token string) (*models.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := r.tokens.Verify(token)
	if err != nil {
		log.Debug().Str("logger", "auth").Str("reason", string(ReasonOf(err))).Msg("token rejected")
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if claims.Type != TokenAccess {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, &TokenError{Reason: ReasonWrongType})
	}
	id, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: subject %q is not a user id", ErrUnauthenticated, claims.Subject)
	}
	user, err := r.users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d not found", ErrUnauthenticated, id)
		}
		return nil, fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
	}
	return user, nil
}

// ResolveOptional is Resolve for endpoints where authentication is optional.
// Every failure, including store errors, yields nil.
func (r *Resolver) ResolveOptional(ctx context.Context, token string) *models.User {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	user, err := r.Resolve(ctx, token)
	if err != nil {
		return nil
	}
	return user
}
