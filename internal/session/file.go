package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/PickFolio/pickfolio-go/internal/domain"
)

// FileStore persists the credential pair as a JSON file on disk, so a
// session survives process restarts. Writes go through a temp file and
// rename so a crash mid-write never leaves a truncated session behind.
type FileStore struct {
	mu   sync.RWMutex
	path string
	pair domain.CredentialPair
	set  bool
}

// NewFileStore loads any existing session from path. A missing file means
// no session; an unreadable or corrupt file is treated the same way and
// overwritten on the next Set.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var pair domain.CredentialPair
	if err := json.Unmarshal(data, &pair); err == nil && pair.AccessToken != "" {
		s.pair = pair
		s.set = true
	}
	return s, nil
}

func (s *FileStore) Get() (domain.CredentialPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, s.set
}

func (s *FileStore) Set(pair domain.CredentialPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	s.pair = pair
	s.set = true
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pair = domain.CredentialPair{}
	s.set = false

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
