package avatar

import (
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// Store persists processed avatars to disk, keyed by room and client.
// Callers invoke it fire-and-forget; a write failure never reaches a
// client. Identifiers are escaped so they cannot traverse out of dir.
type Store struct {
	mu  sync.Mutex
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(roomID, clientID string) string {
	return filepath.Join(s.dir, url.PathEscape(roomID), url.PathEscape(clientID)+".jpg")
}

// Put writes the avatar for (room, client), replacing any previous one.
func (s *Store) Put(roomID, clientID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.path(roomID, clientID)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// Get returns the persisted avatar, or nil when absent.
func (s *Store) Get(roomID, clientID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(roomID, clientID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}
