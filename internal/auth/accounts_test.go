package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/org/authcore/internal/crypto"
	"github.com/org/authcore/internal/storage"
	"github.com/org/authcore/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenAccounts struct{ err error }

func (b brokenAccounts) UserByEmail(context.Context, string) (*models.User, error) {
	return nil, b.err
}

func (b brokenAccounts) CreateUser(context.Context, string, string, []string) (*models.User, error) {
	return nil, b.err
}

func TestAccounts_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	tokens := newTokens(t)
	accounts := NewAccounts(store, tokens, []string{"user"})

	u, err := accounts.Register(ctx, "  Alice@Example.com ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, []string{"user"}, u.Roles)
	assert.NotEqual(t, "s3cret", u.PasswordHash)
	assert.True(t, crypto.VerifyPassword(u.PasswordHash, "s3cret"))

	pair, logged, err := accounts.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)

	resolved, err := NewResolver(tokens, store).Resolve(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, resolved.ID)
}

func TestAccounts_RegisterValidation(t *testing.T) {
	accounts := NewAccounts(storage.NewMemoryStore(), newTokens(t), nil)
	_, err := accounts.Register(context.Background(), "", "pw")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = accounts.Register(context.Background(), "no-at-sign", "pw")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = accounts.Register(context.Background(), "a@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAccounts_RegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccounts(storage.NewMemoryStore(), newTokens(t), []string{"user"})
	_, err := accounts.Register(ctx, "a@example.com", "pw")
	require.NoError(t, err)
	_, err = accounts.Register(ctx, "A@example.com", "pw")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAccounts_DefaultRolesAreCopied(t *testing.T) {
	roles := []string{"user"}
	accounts := NewAccounts(storage.NewMemoryStore(), newTokens(t), roles)
	roles[0] = "admin"

	u, err := accounts.Register(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, u.Roles)
}

func TestAccounts_LoginFailures(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccounts(storage.NewMemoryStore(), newTokens(t), []string{"user"})
	_, err := accounts.Register(ctx, "a@example.com", "right")
	require.NoError(t, err)

	_, _, err = accounts.Login(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = accounts.Login(ctx, "nobody@example.com", "right")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = accounts.Login(ctx, "a@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAccounts_StoreFailure(t *testing.T) {
	accounts := NewAccounts(brokenAccounts{err: errors.New("db down")}, newTokens(t), nil)

	_, err := accounts.Register(context.Background(), "a@example.com", "pw")
	assert.ErrorIs(t, err, ErrDependencyUnavailable)
	_, _, err = accounts.Login(context.Background(), "a@example.com", "pw")
	assert.ErrorIs(t, err, ErrDependencyUnavailable)
}
