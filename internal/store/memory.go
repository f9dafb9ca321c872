package store

import (
	"fmt"
	"strings"
	"sync"
)

// MemoryStore persists per-user remembered facts to a single JSON file.
// Facts are append-only free text; forget clears everything for a user.
type MemoryStore struct {
	path string

	mu    sync.Mutex
	users map[string][]string
}

// NewMemoryStore loads the store from path, creating an empty store if the
// file does not exist yet.
func NewMemoryStore(path string) (*MemoryStore, error) {
	s := &MemoryStore{path: path, users: map[string][]string{}}
	if err := loadJSON(path, &s.users); err != nil {
		return nil, fmt.Errorf("load memory store: %w", err)
	}
	return s, nil
}

// Remember appends fact to userID's memory and persists.
func (s *MemoryStore) Remember(userID, fact string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = append(s.users[userID], fact)
	return saveJSON(s.path, s.users)
}

// Forget clears all memory for userID and persists. It reports whether there
// was anything stored, so the caller can word the reply accordingly.
func (s *MemoryStore) Forget(userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return false, nil
	}
	delete(s.users, userID)
	return true, saveJSON(s.path, s.users)
}

// Context returns userID's facts joined for injection into the system prompt,
// or "" if nothing is stored. Individual entries are never inspected.
func (s *MemoryStore) Context(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.users[userID], "\n")
}
