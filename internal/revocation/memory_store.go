package revocation

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMemoryEntries = 100_000

// implements Store in process; entries are evicted after maxTTL or when the cache is full
type MemoryStore struct {
	cache *lru.LRU[string, time.Time]
	now   func() time.Time
}

// creates an in-memory deny-list; maxTTL should be the access token lifetime
func NewMemoryStore(size int, maxTTL time.Duration) *MemoryStore {
	if size <= 0 {
		size = defaultMemoryEntries
	}

	return &MemoryStore{
		cache: lru.NewLRU[string, time.Time](size, nil, maxTTL),
		now:   time.Now,
	}
}

func (s *MemoryStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	if jti == "" || !expiresAt.After(s.now()) {
		return nil
	}

	s.cache.Add(jti, expiresAt)
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	expiresAt, ok := s.cache.Get(jti)
	if !ok {
		return false, nil
	}

	if !expiresAt.After(s.now()) {
		s.cache.Remove(jti)
		return false, nil
	}

	return true, nil
}
