package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// keeps tokens in a JSON file readable only by the owner
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// file store under the user config dir (~/.config/storefront/tokens.json)
func DefaultFileStore() (*FileStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate config dir: %w", err)
	}

	return NewFileStore(filepath.Join(dir, "storefront", "tokens.json")), nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (*Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read tokens: %w", err)
	}

	var t Tokens
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tokens: %w", err)
	}

	if t.AccessToken == "" && t.RefreshToken == "" {
		return nil, nil
	}

	return &t, nil
}

func (s *FileStore) Save(t *Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write tokens: %w", err)
	}

	return os.Rename(tmp, s.path)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove tokens: %w", err)
	}

	return nil
}

// in-process token store
type MemoryStore struct {
	mu     sync.Mutex
	tokens *Tokens
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens == nil {
		return nil, nil
	}

	clone := *s.tokens
	return &clone, nil
}

func (s *MemoryStore) Save(t *Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *t
	s.tokens = &clone
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = nil
	return nil
}
