package auth

import (
	"time"

	"github.com/roster-app/roster/internal/rbac"
)

// User represents an account able to log in.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Permissions  rbac.Set
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor returns the identity the access guard evaluates. A nil user yields a
// nil actor, which the guard treats as unauthenticated.
func (u *User) Actor() *rbac.Actor {
	if u == nil {
		return nil
	}
	return &rbac.Actor{ID: u.ID, Permissions: u.Permissions}
}

// RegisterInput carries the fields accepted at registration. An empty
// Permissions list grants the default set.
type RegisterInput struct {
	Username    string   `validate:"required,max=80"`
	Password    string   `validate:"required,min=8,max=72"`
	Permissions []string `validate:"-"`
}

// UserView is the public projection of a user; the hash is never exposed.
type UserView struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Permissions rbac.Set `json:"permissions"`
}

// View projects u for API responses.
func (u *User) View() UserView {
	return UserView{ID: u.ID, Username: u.Username, Permissions: u.Permissions}
}
