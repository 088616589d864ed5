// Package credstore persists the client's auth credentials: the bearer
// token plus the session and person ids returned by login. It is the Go
// rendition of the dashboard's three local-storage keys.
package credstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/poupafin/poupafin-go/internal/domain"
)

// FileStore keeps credentials in a JSON file (0600). Reads are served from
// memory; the file is only touched on Save/Clear.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	creds domain.Credentials
}

// NewFileStore loads any previously saved credentials from path. A missing
// file is not an error; the store just starts empty.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &s.creds); err != nil {
		// Corrupt credentials are as good as none.
		return s, nil
	}
	return s, nil
}

// Token returns the stored bearer token, empty when logged out.
func (s *FileStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AuthToken
}

// UserID returns the stored person id, zero when logged out.
func (s *FileStore) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.UserID
}

// SessionID returns the stored session id, zero when logged out.
func (s *FileStore) SessionID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.SessionID
}

// Save persists the credentials atomically (write temp file, then rename).
func (s *FileStore) Save(creds domain.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	s.creds = creds
	return nil
}

// Clear wipes both memory and disk. Removing a file that is already gone is
// not an error.
func (s *FileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = domain.Credentials{}
	_ = os.Remove(s.path)
}

// MemStore is an in-memory credential store for tests.
type MemStore struct {
	mu    sync.RWMutex
	creds domain.Credentials
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AuthToken
}

func (s *MemStore) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.UserID
}

func (s *MemStore) SessionID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.SessionID
}

func (s *MemStore) Save(creds domain.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	return nil
}

func (s *MemStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = domain.Credentials{}
}
