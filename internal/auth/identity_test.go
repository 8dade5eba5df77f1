package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/org/authcore/internal/crypto"
	"github.com/org/authcore/internal/storage"
	"github.com/org/authcore/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	crypto.PasswordCost = bcrypt.MinCost
}

type failingLookup struct{ err error }

func (f failingLookup) UserByID(context.Context, int64) (*models.User, error) {
	return nil, f.err
}

func seedUser(t *testing.T, store *storage.MemoryStore, email string, roles ...string) *models.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), email, "digest", roles)
	require.NoError(t, err)
	return u
}

func TestResolver_Resolve(t *testing.T) {
	store := storage.NewMemoryStore()
	user := seedUser(t, store, "a@example.com", "user")
	tokens := newTokens(t)
	r := NewResolver(tokens, store)

	pair, err := tokens.IssuePair("1")
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, []string{"user"}, got.Roles)
}

func TestResolver_Failures(t *testing.T) {
	store := storage.NewMemoryStore()
	seedUser(t, store, "a@example.com", "user")
	clock := newTestClock()
	tokens := newTokens(t, WithClock(clock.Now))
	r := NewResolver(tokens, store)

	pair, err := tokens.IssuePair("1")
	require.NoError(t, err)
	unknown, err := tokens.Issue("999", TokenAccess, time.Minute)
	require.NoError(t, err)
	notNumeric, err := tokens.Issue("alice", TokenAccess, time.Minute)
	require.NoError(t, err)
	short, err := tokens.Issue("1", TokenAccess, time.Second)
	require.NoError(t, err)

	cases := []struct {
		name   string
		token  string
		reason TokenReason
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "garbage", reason: ReasonMalformed},
		{name: "refresh token", token: pair.RefreshToken, reason: ReasonWrongType},
		{name: "unknown subject", token: unknown},
		{name: "non numeric subject", token: notNumeric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tc.token)
			require.ErrorIs(t, err, ErrUnauthenticated)
			assert.NotErrorIs(t, err, ErrDependencyUnavailable)
			assert.Equal(t, tc.reason, ReasonOf(err))
		})
	}

	clock.now = clock.now.Add(3 * time.Second)
	_, err = r.Resolve(context.Background(), short)
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, ReasonExpired, ReasonOf(err))
}

func TestResolver_StoreFailure(t *testing.T) {
	tokens := newTokens(t)
	r := NewResolver(tokens, failingLookup{err: errors.New("db down")})

	pair, err := tokens.IssuePair("1")
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, ErrDependencyUnavailable)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestResolver_ResolveOptional(t *testing.T) {
	store := storage.NewMemoryStore()
	seedUser(t, store, "a@example.com", "user")
	tokens := newTokens(t)
	pair, err := tokens.IssuePair("1")
	require.NoError(t, err)

	r := NewResolver(tokens, store)
	assert.Nil(t, r.ResolveOptional(context.Background(), ""))
	assert.Nil(t, r.ResolveOptional(context.Background(), "garbage"))
	assert.Nil(t, r.ResolveOptional(context.Background(), pair.RefreshToken))
	u := r.ResolveOptional(context.Background(), pair.AccessToken)
	require.NotNil(t, u)
	assert.Equal(t, int64(1), u.ID)

	down := NewResolver(tokens, failingLookup{err: errors.New("db down")})
	assert.Nil(t, down.ResolveOptional(context.Background(), pair.AccessToken))
}
