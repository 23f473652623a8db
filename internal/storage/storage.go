// Package storage is the client's durable local key-value store, the
// terminal-side stand-in for the browser's localStorage. Each key is a
// file under <home>/state/; writes are atomic (temp file + rename) so a
// concurrent reader never observes a torn value.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Well-known keys. All call sites that touch the session credential must
// agree on these two and always clear them together.
const (
	KeyToken    = "token"
	KeyIdentity = "identity"
)

// Store is a file-backed key-value store.
type Store struct {
	dir string
}

// Open creates the state directory under homeDir and returns a Store.
func Open(homeDir string) (*Store, error) {
	dir := filepath.Join(homeDir, "state")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the backing directory (used by Watch and by tests).
func (s *Store) Dir() string {
	return s.dir
}

// Get returns the value for key, reporting presence separately from errors.
// A missing key is (\"\", false, nil).
func (s *Store) Get(key string) (string, bool, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), true, nil
}

// Set writes value under key atomically.
func (s *Store) Set(key, value string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op success.
func (s *Store) Delete(key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) keyPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, `/\.`) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}
