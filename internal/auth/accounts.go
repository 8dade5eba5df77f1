package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/org/authcore/internal/crypto"
	"github.com/org/authcore/internal/storage"
	"github.com/org/authcore/pkg/models"
)

// AccountStore is what Accounts needs from storage.
type AccountStore interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, email, passwordHash string, roles []string) (*models.User, error)
}

// Accounts handles registration and password login.
type Accounts struct {
	store        AccountStore
	tokens       *TokenService
	defaultRoles []string
}

// NewAccounts creates an Accounts service assigning defaultRoles to new users.
func NewAccounts(store AccountStore, tokens *TokenService, defaultRoles []string) *Accounts {
	roles := make([]string, len(defaultRoles))
	copy(roles, defaultRoles)
	return &Accounts{store: store, tokens: tokens, defaultRoles: roles}
}

// Register creates a user with the default roles.
func (a *Accounts) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user, err := a.store.CreateUser(ctx, email, hash, a.defaultRoles)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
	}
	return user, nil
}

// Login checks email and password and issues a token pair for the user.
func (a *Accounts) Login(ctx context.Context, email, password string) (models.TokenPair, *models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.TokenPair{}, nil, ErrInvalidCredentials
	}
	user, err := a.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.TokenPair{}, nil, ErrInvalidCredentials
		}
		return models.TokenPair{}, nil, fmt.Errorf("%w: %w", ErrDependencyUnavailable, err)
	}
	if !crypto.VerifyPassword(user.PasswordHash, password) {
		return models.TokenPair{}, nil, ErrInvalidCredentials
	}
	pair, err := a.tokens.IssuePair(strconv.FormatInt(user.ID, 10))
	if err != nil {
		return models.TokenPair{}, nil, err
	}
	return pair, user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
