package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"codeberg.org/storefront/server/storefront/users"
)

var ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

// distinguishes access from refresh tokens inside the claims
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// represents JWT claims
type Claims struct {
	UserID string     `json:"id"`
	Email  string     `json:"email"`
	Role   users.Role `json:"role"`
	Kind   TokenKind  `json:"typ"`
	jwt.RegisteredClaims
}

// identity snapshot embedded in a token
type Identity struct {
	ID    string
	Email string
	Role  users.Role
}

func IdentityOf(u *users.User) Identity {
	return Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}

// issued access/refresh pair; ExpiresIn is the access token lifetime in seconds
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// machine-usable reason a strategy rejected the presented credentials
type Reason string

const (
	ReasonMissingToken          Reason = "missing_token"
	ReasonInvalidOrExpiredToken Reason = "invalid_or_expired_token"
	ReasonIdentityNotFound      Reason = "identity_not_found"
	ReasonAccountNotFound       Reason = "account_not_found"
	ReasonOAuthOnlyAccount      Reason = "oauth_only_account"
	ReasonInvalidPassword       Reason = "invalid_password"
	ReasonAccountDisabled       Reason = "account_disabled"
	ReasonMissingSession        Reason = "missing_session"
)

var reasonMessages = map[Reason]string{
	ReasonMissingToken:          "authorization header required",
	ReasonInvalidOrExpiredToken: "invalid or expired token",
	ReasonIdentityNotFound:      "user not found",
	ReasonAccountNotFound:       "no account found with this email",
	ReasonOAuthOnlyAccount:      "this account uses Google sign-in, please log in with Google",
	ReasonInvalidPassword:       "invalid password",
	ReasonAccountDisabled:       "this account has been disabled",
	ReasonMissingSession:        "not authenticated",
}

// expected rejection from a credential strategy (401), as opposed to an internal error (500)
type Failure struct {
	Reason Reason
	Cause  error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Reason, f.Cause)
	}

	return string(f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// human readable message for the failure reason
func (f *Failure) Message() string {
	if msg, ok := reasonMessages[f.Reason]; ok {
		return msg
	}

	return "authentication failed"
}

func fail(reason Reason, cause error) *Failure {
	return &Failure{Reason: reason, Cause: cause}
}

// reports whether err is a strategy failure and returns it
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}

	return nil, false
}
