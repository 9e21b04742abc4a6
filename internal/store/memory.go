package store

import "sync"

// MemoryStore is a Store backed by a mutex-guarded map. It keeps passwords
// in cleartext and exists for tests and throwaway dev setups only.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]string
}

// NewMemoryStore returns an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]string)}
}

// Verify reports whether the pair matches. Unknown usernames are a plain false.
func (s *MemoryStore) Verify(username, password string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, found := s.users[username]
	return found && stored == password, nil
}

// Exists reports whether the username has a record.
func (s *MemoryStore) Exists(username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, found := s.users[username]
	return found, nil
}

// Create stores a new record, or returns ErrExists.
func (s *MemoryStore) Create(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.users[username]; found {
		return ErrExists
	}
	s.users[username] = password
	return nil
}

// Delete verifies and removes the record, or returns ErrInvalid.
func (s *MemoryStore) Delete(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, found := s.users[username]; !found || stored != password {
		return ErrInvalid
	}
	delete(s.users, username)
	return nil
}
