package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_UserByID(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, email, hashed_password, created_at FROM users WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "hashed_password", "created_at"}).
			AddRow(int64(7), "a@example.com", "digest", created))
	mock.ExpectQuery(`SELECT r.name FROM roles r`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("admin").AddRow("user"))

	u, err := store.UserByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, "a@example.com", u.Email)
	assert.Equal(t, "digest", u.PasswordHash)
	assert.Equal(t, []string{"admin", "user"}, u.Roles)
	assert.Equal(t, created, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UserByEmailNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM users WHERE email = \$1`).
		WithArgs("missing@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := store.UserByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryErrorIsWrapped(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnError(boom)

	_, err := store.UserByID(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_CreateUser(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users \(email, hashed_password\)`).
		WithArgs("a@example.com", "digest").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), created))
	mock.ExpectQuery(`INSERT INTO roles \(name\)`).
		WithArgs("user").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO user_roles \(user_id, role_id\)`).
		WithArgs(int64(3), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := store.CreateUser(context.Background(), "a@example.com", "digest", []string{"user", "user"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.ID)
	assert.Equal(t, []string{"user"}, u.Roles)
	assert.Equal(t, created, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateUserConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("a@example.com", "digest").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
	mock.ExpectRollback()

	_, err := store.CreateUser(context.Background(), "a@example.com", "digest", []string{"user"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateUserRoleFailureRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), time.Now()))
	mock.ExpectQuery(`INSERT INTO roles`).
		WithArgs("user").
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	_, err := store.CreateUser(context.Background(), "a@example.com", "digest", []string{"user"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `ensuring role "user"`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectPing()
	assert.NoError(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
