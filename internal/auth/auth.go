package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// signs and verifies access/refresh tokens with distinct secrets
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

type CodecConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// creates a token codec; both secrets are required
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("access and refresh secrets must be set")
	}

	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive")
	}

	return &Codec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}, nil
}

func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// creates a signed access token for the identity
func (c *Codec) SignAccess(id Identity) (string, error) {
	return c.sign(id, KindAccess, c.accessSecret, c.accessTTL)
}

// creates a signed refresh token for the identity
func (c *Codec) SignRefresh(id Identity) (string, error) {
	return c.sign(id, KindRefresh, c.refreshSecret, c.refreshTTL)
}

// validates an access token and returns the claims
func (c *Codec) VerifyAccess(token string) (*Claims, error) {
	return c.verify(token, KindAccess, c.accessSecret)
}

// validates a refresh token and returns the claims
func (c *Codec) VerifyRefresh(token string) (*Claims, error) {
	return c.verify(token, KindRefresh, c.refreshSecret)
}

// signs both tokens from a single identity snapshot
func (c *Codec) IssuePair(id Identity) (TokenPair, error) {
	access, err := c.SignAccess(id)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := c.SignRefresh(id)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(c.accessTTL / time.Second),
	}, nil
}

func (c *Codec) sign(id Identity, kind TokenKind, secret []byte, ttl time.Duration) (string, error) {
	now := c.now()

	claims := Claims{
		UserID: id.ID,
		Email:  id.Email,
		Role:   id.Role,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}

	return signed, nil
}

func (c *Codec) verify(tokenString string, kind TokenKind, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}

			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrExpiredToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidOrExpiredToken
	}

	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidOrExpiredToken, kind, claims.Kind)
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidOrExpiredToken)
	}

	return claims, nil
}

// reads the claims without checking the signature; never use the result to authorize
func DecodeUnsafe(tokenString string) *Claims {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil
	}

	return claims
}

// parses a strict "Bearer <token>" header value
func ExtractBearer(header string) (string, bool) {
	const prefix = "Bearer "

	if !strings.HasPrefix(header, prefix) {
		return "", false
	}

	token := header[len(prefix):]
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}
