package auth

import (
	"context"

	"github.com/org/authcore/pkg/models"
)

// Guard resolves the caller of a request and enforces a policy on it.
type Guard func(ctx context.Context, token string) (*models.User, error)

// RequireAuth returns a Guard that only requires a resolvable principal.
func RequireAuth(r *Resolver) Guard {
	return r.Resolve
}

// RequireRoles returns a Guard admitting principals holding any of anyOf, or the admin role.
// An empty anyOf admits only admins.
func RequireRoles(r *Resolver, anyOf ...string) Guard {
	return func(ctx context.Context, token string) (*models.User, error) {
		user, err := r.Resolve(ctx, token)
		if err != nil {
			return nil, err
		}
		if err := Authorize(user, anyOf...); err != nil {
			return nil, err
		}
		return user, nil
	}
}

// Authorize applies the role predicate of RequireRoles to an already resolved user.
func Authorize(user *models.User, anyOf ...string) error {
	if user == nil {
		return ErrUnauthenticated
	}
	if !allowed(user, roleSet(anyOf)) {
		return ErrForbidden
	}
	return nil
}

func roleSet(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

func allowed(user *models.User, required map[string]struct{}) bool {
	for _, role := range user.Roles {
		if role == models.RoleAdmin {
			return true
		}
		if _, ok := required[role]; ok {
			return true
		}
	}
	return false
}
