// Package settings persists local dashboard preferences in a Pebble database
// and syncs the one remote-backed flag with the dashboard backend.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Get for keys that were never set.
var ErrNotFound = errors.New("settings: not found")

// Well-known keys.
const (
	KeyLastPage        = "ui.last_page"
	KeyExportFormat    = "export.format"
	KeyPublicDashboard = "remote.public_dashboard"
)

const keyPrefix = "setting|"

var (
	keyLower = []byte(keyPrefix)
	keyUpper = []byte("setting}")
)

// Store is a small string key/value store.
type Store struct {
	mu   sync.Mutex
	db   *pebble.DB
	path string
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("settings: path is empty")
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("settings: open %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database directory.
func (s *Store) Path() string { return s.path }

func storeKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("settings: empty key")
	}
	return []byte(keyPrefix + key), nil
}

// Get returns the value for key or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	k, err := storeKey(key)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return "", errors.New("settings: store closed")
	}
	data, closer, err := s.db.Get(k)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("settings: get %s: %w", key, err)
	}
	defer closer.Close()
	return string(data), nil
}

// GetDefault returns the value for key, or def when unset or unreadable.
func (s *Store) GetDefault(key, def string) string {
	v, err := s.Get(key)
	if err != nil {
		return def
	}
	return v
}

// Set writes key synchronously.
func (s *Store) Set(key, value string) error {
	k, err := storeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errors.New("settings: store closed")
	}
	if err := s.db.Set(k, []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	k, err := storeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errors.New("settings: store closed")
	}
	if err := s.db.Delete(k, pebble.Sync); err != nil {
		return fmt.Errorf("settings: delete %s: %w", key, err)
	}
	return nil
}

// All returns every stored setting.
func (s *Store) All() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errors.New("settings: store closed")
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: keyLower, UpperBound: keyUpper})
	if err != nil {
		return nil, fmt.Errorf("settings: iterate: %w", err)
	}
	defer iter.Close()
	out := make(map[string]string)
	for iter.First(); iter.Valid(); iter.Next() {
		key := strings.TrimPrefix(string(iter.Key()), keyPrefix)
		out[key] = string(iter.Value())
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("settings: iterate: %w", err)
	}
	return out, nil
}

// Reset deletes every stored setting.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errors.New("settings: store closed")
	}
	if err := s.db.DeleteRange(keyLower, keyUpper, pebble.Sync); err != nil {
		return fmt.Errorf("settings: reset: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
