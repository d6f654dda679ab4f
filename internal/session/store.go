package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/uniquiz/quiz-client/internal/model"
)

// Store holds the process-wide credential pair. Writes (login, renewal,
// logout) are serialized; reads return a consistent snapshot so a request is
// signed with one coherent pair. When path is non-empty the pair is persisted
// so a session survives process restarts.
type Store struct {
	mu    sync.RWMutex
	creds model.Credentials
	path  string
}

// NewStore creates a Store persisting to path. An empty path keeps the
// credentials in memory only (used by tests).
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads persisted credentials from disk. A missing file is not an
// error — it simply means no session is held.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read credentials: %w", err)
	}

	var creds model.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return fmt.Errorf("decode credentials: %w", err)
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return nil
}

// Get returns a snapshot of the current credential pair.
func (s *Store) Get() model.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Set replaces the credential pair and persists it.
func (s *Store) Set(creds model.Credentials) error {
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return s.persist(creds)
}

// Clear wipes both tokens together and removes the persisted file.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.creds = model.Credentials{}
	s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

func (s *Store) persist(creds model.Credentials) error {
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	// Tokens only readable by the owner.
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}
