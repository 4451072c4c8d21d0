package auth

import (
	"codeberg.org/storefront/server/internal/auth"
	"codeberg.org/storefront/server/storefront/users"
)

// SignupRequest for creating a local account; role is accepted but ignored
type SignupRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,max=254"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role,omitempty"`
}

// LoginRequest for email and password login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries the refresh token in the body
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UpdateProfileRequest for updating user profile
type UpdateProfileRequest struct {
	Name      string `json:"name" binding:"required,max=100"`
	AvatarURL string `json:"avatarUrl" binding:"max=500"`
}

// LoginResponse returned after a successful login
type LoginResponse struct {
	User   *users.User    `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

// SignupResponse returned after account creation
type SignupResponse struct {
	Message string      `json:"message"`
	User    *users.User `json:"user"`
}

// RefreshResponse carries the new access token; the refresh token is not rotated
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// UserResponse wraps user data
type UserResponse struct {
	User *users.User `json:"user"`
}

// MessageResponse for simple success messages
type MessageResponse struct {
	Message string `json:"message"`
}

// oauth failure codes placed in the frontend redirect
const (
	oauthErrDisabled        = "oauth_disabled"
	oauthErrInvalidState    = "invalid_state"
	oauthErrFailed          = "oauth_failed"
	oauthErrAccountDisabled = "account_disabled"
	oauthErrServer          = "server_error"
	oauthErrUnverified      = "email_unverified"
)
