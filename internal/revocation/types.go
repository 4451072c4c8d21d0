package revocation

import (
	"context"
	"time"
)

// deny-list of token ids that must no longer authenticate
type Store interface {
	// records jti as revoked until expiresAt; past expiries are ignored
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
