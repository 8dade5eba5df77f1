package storage

import (
	"context"
	"errors"

	"github.com/org/authcore/pkg/models"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when trying to create a resource that already exists.
var ErrAlreadyExists = errors.New("already exists")

// ErrUnavailable is returned when the backend is known to be unreachable.
var ErrUnavailable = errors.New("store unavailable")

// UserStore defines the persistence interface for users and their roles.
// Role name uniqueness is enforced by the store.
type UserStore interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)

	// CreateUser inserts a user and assigns roles, creating missing roles.
	CreateUser(ctx context.Context, email, passwordHash string, roles []string) (*models.User, error)

	Ping(ctx context.Context) error
	Close() error
}
