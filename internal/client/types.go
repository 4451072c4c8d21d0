package client

import (
	"errors"
	"time"

	"codeberg.org/storefront/server/storefront/users"
)

const (
	// tokens expiring within this window are refreshed before use
	expiryBuffer = 5 * time.Minute

	// proactive refresh fires this long before expiry
	refreshLead = 10 * time.Minute

	requestTimeout = 15 * time.Second
)

var (
	ErrNotLoggedIn      = errors.New("not logged in")
	ErrSessionExpired   = errors.New("session expired, please log in again")
	ErrRefreshThrottled = errors.New("token refresh throttled after repeated attempts")

	// the server rate limited the refresh; the stored tokens are kept
	ErrRefreshRateLimited = errors.New("token refresh rate limited by server, try again later")
)

// persisted client credentials
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// where the manager keeps tokens between requests and runs
type TokenStore interface {
	// returns nil, nil when nothing is stored
	Load() (*Tokens, error)
	Save(t *Tokens) error
	Clear() error
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	Message string      `json:"message"`
	User    *users.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User   *users.User `json:"user"`
	Tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int64  `json:"expiresIn"`
	} `json:"tokens"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type meResponse struct {
	User *users.User `json:"user"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// non-2xx answer from the API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Reason     string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return e.Code
}
