package storage

import (
	"context"
	"sync"
	"time"

	"github.com/org/authcore/pkg/models"
)

// MemoryStore is a UserStore kept in process memory. Used in dev mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*models.User
	byEmail map[string]int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:  1,
		byID:    map[int64]*models.User{},
		byEmail: map[string]int64{},
	}
}

func (m *MemoryStore) UserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(m.byID[id]), nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, email, passwordHash string, roles []string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return nil, ErrAlreadyExists
	}
	u := &models.User{
		ID:           m.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        dedupe(roles),
		CreatedAt:    time.Now().UTC(),
	}
	m.nextID++
	m.byID[u.ID] = u
	m.byEmail[email] = u.ID
	return cloneUser(u), nil
}

// SetRoles replaces the roles of a user. Role management has no HTTP surface;
// this exists for seeding and tests.
func (m *MemoryStore) SetRoles(id int64, roles ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Roles = dedupe(roles)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	return &c
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
