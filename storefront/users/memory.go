package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*MemoryStore)(nil)

// in-process store used for development and tests
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.Email = normalizeEmail(u.Email)
	if _, exists := s.byEmail[u.Email]; exists {
		return ErrEmailTaken
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	prepareNew(u, s.now().UTC())

	clone := *u
	s.byID[u.ID] = &clone
	s.byEmail[u.Email] = u.ID

	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copyOf(s.byID[id])
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}

	return s.copyOf(s.byID[id])
}

func (s *MemoryStore) FindByProviderID(_ context.Context, provider Provider, providerID string) (*User, error) {
	if providerID == "" {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.byID {
		if u.Provider == provider && u.ProviderID == providerID {
			return s.copyOf(u)
		}
	}

	return nil, ErrNotFound
}

func (s *MemoryStore) LinkProvider(_ context.Context, id string, link ProviderLink) (*User, error) {
	return s.update(id, func(u *User) {
		u.Provider = link.Provider
		u.ProviderID = link.ProviderID
		u.IsVerified = true
		if link.AvatarURL != "" {
			u.AvatarURL = link.AvatarURL
		}
	})
}

func (s *MemoryStore) UpdateProfile(_ context.Context, id, name, avatarURL string) (*User, error) {
	return s.update(id, func(u *User) {
		u.Name = name
		u.AvatarURL = avatarURL
	})
}

func (s *MemoryStore) UpdateRole(_ context.Context, id string, role Role) (*User, error) {
	return s.update(id, func(u *User) {
		u.Role = role
	})
}

func (s *MemoryStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	_, err := s.update(id, func(u *User) {
		u.PasswordHash = passwordHash
	})

	return err
}

func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]*User, error) {
	s.mu.RLock()
	all := make([]*User, 0, len(s.byID))
	for _, u := range s.byID {
		clone := *u
		all = append(all, &clone)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset < 0 {
		offset = 0
	}

	if offset >= len(all) {
		return []*User{}, nil
	}

	end := offset + clampLimit(limit)
	if end > len(all) {
		end = len(all)
	}

	return all[offset:end], nil
}

// SetActive toggles the active flag; used by admin tooling and tests
func (s *MemoryStore) SetActive(id string, active bool) error {
	_, err := s.update(id, func(u *User) {
		u.IsActive = active
	})

	return err
}

func (s *MemoryStore) update(id string, mutate func(u *User)) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	mutate(u)
	u.UpdatedAt = s.now().UTC()

	return s.copyOf(u)
}

func (s *MemoryStore) copyOf(u *User) (*User, error) {
	if u == nil {
		return nil, ErrNotFound
	}

	clone := *u
	return &clone, nil
}
