package models

import "time"

// RoleAdmin is the role that satisfies every role requirement.
const RoleAdmin = "admin"

// User is an account resolved from a token subject.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

// HasRole reports whether the user holds the named role.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// RoleSet returns the user's roles as a set.
func (u *User) RoleSet() map[string]struct{} {
	set := make(map[string]struct{}, len(u.Roles))
	for _, r := range u.Roles {
		set[r] = struct{}{}
	}
	return set
}

// UserOut is the public representation of a user.
type UserOut struct {
	ID    int64    `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// Public strips credential material from the user.
func (u *User) Public() UserOut {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserOut{ID: u.ID, Email: u.Email, Roles: roles}
}

// TokenPair is the response of login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
