package prefs

import (
	"sync"

	"talkeysclient/internal/clock"
	"talkeysclient/internal/domain"
)

// MemoryStore is an in-process domain.TokenStore with the same TTL policy as
// FileStore. Useful for tests and for embedders that manage persistence
// themselves.
type MemoryStore struct {
	mu        sync.Mutex
	token     string
	expiresAt int64
	clock     clock.Clock
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &MemoryStore{clock: clk}
}

func (s *MemoryStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = s.clock.Now().Add(TokenTTL).Unix()
	return nil
}

func (s *MemoryStore) Read() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", domain.ErrNoToken
	}
	return s.token, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = 0
	return nil
}

func (s *MemoryStore) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return false
	}
	if s.expiresAt > 0 && s.clock.Now().Unix() > s.expiresAt {
		s.token = ""
		s.expiresAt = 0
		return false
	}
	return true
}
