package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"codeberg.org/storefront/server/internal/metrics"
	"codeberg.org/storefront/server/internal/password"
	"codeberg.org/storefront/server/storefront/users"
)

const (
	StrategyLocal   = "local"
	StrategyBearer  = "bearer"
	StrategyGoogle  = "google"
	StrategySession = "session"
)

var (
	ErrIncompleteProfile = errors.New("oauth profile is missing id or email")
	ErrUnverifiedEmail   = errors.New("oauth provider has not verified the email address")
)

// checks revoked token ids; satisfied by revocation.Store
type Revoker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// resolves email + password credentials
type LocalStrategy struct {
	store   users.Store
	metrics *metrics.Metrics
}

func NewLocalStrategy(store users.Store, m *metrics.Metrics) *LocalStrategy {
	return &LocalStrategy{store: store, metrics: m}
}

// returns the sanitized identity, a *Failure, or an internal error
func (s *LocalStrategy) Authenticate(ctx context.Context, email, plaintext string) (*users.User, error) {
	u, err := s.authenticate(ctx, email, plaintext)
	observe(s.metrics, StrategyLocal, err)
	return u, err
}

func (s *LocalStrategy) authenticate(ctx context.Context, email, plaintext string) (*users.User, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, fail(ReasonAccountNotFound, nil)
		}

		return nil, fmt.Errorf("find user by email: %w", err)
	}

	if !u.HasPassword() {
		return nil, fail(ReasonOAuthOnlyAccount, nil)
	}

	if !password.Verify(plaintext, u.PasswordHash) {
		return nil, fail(ReasonInvalidPassword, nil)
	}

	if !u.IsActive {
		return nil, fail(ReasonAccountDisabled, nil)
	}

	return u.Sanitized(), nil
}

// resolves a stateless access token
type BearerStrategy struct {
	codec   *Codec
	store   users.Store
	revoked Revoker
	metrics *metrics.Metrics
}

// revoked may be nil when the deny-list is disabled
func NewBearerStrategy(codec *Codec, store users.Store, revoked Revoker, m *metrics.Metrics) *BearerStrategy {
	return &BearerStrategy{codec: codec, store: store, revoked: revoked, metrics: m}
}

// returns the sanitized identity with the verified claims
func (s *BearerStrategy) Authenticate(ctx context.Context, token string) (*users.User, *Claims, error) {
	u, claims, err := s.authenticate(ctx, token)
	observe(s.metrics, StrategyBearer, err)
	return u, claims, err
}

func (s *BearerStrategy) authenticate(ctx context.Context, token string) (*users.User, *Claims, error) {
	if token == "" {
		return nil, nil, fail(ReasonMissingToken, nil)
	}

	claims, err := s.codec.VerifyAccess(token)
	if err != nil {
		return nil, nil, fail(ReasonInvalidOrExpiredToken, err)
	}

	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("check token revocation: %w", err)
		}

		if revoked {
			return nil, nil, fail(ReasonInvalidOrExpiredToken, errors.New("token revoked"))
		}
	}

	u, err := s.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, nil, fail(ReasonIdentityNotFound, nil)
		}

		return nil, nil, fmt.Errorf("find user by id: %w", err)
	}

	if !u.IsActive {
		return nil, nil, fail(ReasonAccountDisabled, nil)
	}

	return u.Sanitized(), claims, nil
}

// federated identity as returned by the provider
type Profile struct {
	Provider   users.Provider
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string

	// the provider vouches for Email; required before linking or creating by email
	EmailVerified bool
}

// resolves a federated profile to a local identity, linking or creating as needed
type OAuthStrategy struct {
	store   users.Store
	metrics *metrics.Metrics
}

func NewOAuthStrategy(store users.Store, m *metrics.Metrics) *OAuthStrategy {
	return &OAuthStrategy{store: store, metrics: m}
}

// resolution order: provider id, then email (linking), then a new account
func (s *OAuthStrategy) Resolve(ctx context.Context, p Profile) (*users.User, error) {
	u, err := s.resolve(ctx, p)
	observe(s.metrics, string(p.Provider), err)
	return u, err
}

func (s *OAuthStrategy) resolve(ctx context.Context, p Profile) (*users.User, error) {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.ProviderID == "" || p.Email == "" {
		return nil, ErrIncompleteProfile
	}

	if p.Provider == "" {
		p.Provider = users.ProviderGoogle
	}

	u, err := s.store.FindByProviderID(ctx, p.Provider, p.ProviderID)
	if err == nil {
		return active(u)
	}

	if !errors.Is(err, users.ErrNotFound) {
		return nil, fmt.Errorf("find user by provider id: %w", err)
	}

	// an unverified address must never claim an existing account or a new one
	if !p.EmailVerified {
		return nil, ErrUnverifiedEmail
	}

	u, err = s.linkByEmail(ctx, p)
	if err == nil {
		return active(u)
	}

	if !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}

	created := &users.User{
		Name:       displayName(p),
		Email:      p.Email,
		Role:       users.RoleUser,
		IsVerified: true,
		IsActive:   true,
		Provider:   p.Provider,
		ProviderID: p.ProviderID,
		AvatarURL:  p.AvatarURL,
	}

	if err := s.store.Create(ctx, created); err != nil {
		if !errors.Is(err, users.ErrEmailTaken) {
			return nil, fmt.Errorf("create oauth user: %w", err)
		}

		// a concurrent login created the account between lookup and insert
		u, err = s.linkByEmail(ctx, p)
		if err != nil {
			return nil, err
		}

		return active(u)
	}

	return created.Sanitized(), nil
}

func (s *OAuthStrategy) linkByEmail(ctx context.Context, p Profile) (*users.User, error) {
	existing, err := s.store.FindByEmail(ctx, p.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("find user by email: %w", err)
	}

	linked, err := s.store.LinkProvider(ctx, existing.ID, users.ProviderLink{
		Provider:   p.Provider,
		ProviderID: p.ProviderID,
		AvatarURL:  p.AvatarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("link provider: %w", err)
	}

	return linked, nil
}

func active(u *users.User) (*users.User, error) {
	if !u.IsActive {
		return nil, fail(ReasonAccountDisabled, nil)
	}

	return u.Sanitized(), nil
}

func displayName(p Profile) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}

	local, _, _ := strings.Cut(p.Email, "@")
	return local
}

func observe(m *metrics.Metrics, strategy string, err error) {
	switch {
	case err == nil:
		m.AuthAttempt(strategy, metrics.ResultSuccess)
	case isFailure(err):
		m.AuthAttempt(strategy, metrics.ResultFailure)
	default:
		m.AuthAttempt(strategy, metrics.ResultError)
	}
}

func isFailure(err error) bool {
	_, ok := AsFailure(err)
	return ok
}
