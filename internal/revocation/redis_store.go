package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyRevoked = "revoked:jti:%s"

// implements Store using Redis key expiry
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// creates a new Redis-backed deny-list
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// parses a redis URL and checks connectivity
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func (s *RedisStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if jti == "" || ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, fmt.Sprintf(keyRevoked, jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}

	n, err := s.client.Exists(ctx, fmt.Sprintf(keyRevoked, jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}

	return n > 0, nil
}
