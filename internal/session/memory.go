package session

import (
	"sync"

	"github.com/PickFolio/pickfolio-go/internal/domain"
)

// MemoryStore keeps the credential pair in process memory only. Used in
// tests and for throwaway sessions that should not survive a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	pair domain.CredentialPair
	set  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (domain.CredentialPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, s.set
}

func (s *MemoryStore) Set(pair domain.CredentialPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	s.set = true
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = domain.CredentialPair{}
	s.set = false
	return nil
}
