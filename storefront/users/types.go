package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// reports whether r is one of the assignable roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

// represents a storefront account
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsVerified   bool      `json:"isVerified"`
	IsActive     bool      `json:"isActive"`
	Provider     Provider  `json:"provider"`
	ProviderID   string    `json:"-"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// returns a copy without the password hash, safe to attach to a request
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}

	clone := *u
	clone.PasswordHash = ""
	return &clone
}

// external identity attached to an existing account
type ProviderLink struct {
	Provider   Provider
	ProviderID string
	AvatarURL  string
}

// persistence contract for accounts; every mutation touches a single record
type Store interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByProviderID(ctx context.Context, provider Provider, providerID string) (*User, error)
	LinkProvider(ctx context.Context, id string, link ProviderLink) (*User, error)
	UpdateProfile(ctx context.Context, id, name, avatarURL string) (*User, error)
	UpdateRole(ctx context.Context, id string, role Role) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	List(ctx context.Context, limit, offset int) ([]*User, error)
}

// fills defaults for a record about to be created
func prepareNew(u *User, now time.Time) {
	if u.Role == "" {
		u.Role = RoleUser
	}

	if u.Provider == "" {
		u.Provider = ProviderLocal
	}

	u.CreatedAt = now
	u.UpdatedAt = now
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}

	if limit > maxListLimit {
		return maxListLimit
	}

	return limit
}
