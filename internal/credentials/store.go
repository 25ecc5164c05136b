package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const fileExt = ".enc"

// Store is a file-backed credential store.
type Store struct {
	dir        string
	passphrase string
	mu         sync.Mutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir, passphrase string) *Store {
	return &Store{dir: dir, passphrase: passphrase}
}

// Dir returns the store root.
func (s *Store) Dir() string {
	return s.dir
}

// PutSecret encrypts secret and writes it for (service, keyID), replacing
// any previous value.
func (s *Store) PutSecret(service, keyID, secret string) error {
	path, err := s.path(service, keyID)
	if err != nil {
		return err
	}
	data, err := seal(s.passphrase, keyID, []byte(secret))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credential directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write secret: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

// GetSecret returns the secret for (service, keyID) or ErrSecretNotFound.
func (s *Store) GetSecret(service, keyID string) (string, error) {
	path, err := s.path(service, keyID)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrSecretNotFound
		}
		return "", err
	}
	plaintext, err := open(s.passphrase, keyID, data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// DeleteSecret removes the secret for (service, keyID).
func (s *Store) DeleteSecret(service, keyID string) error {
	path, err := s.path(service, keyID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrSecretNotFound
		}
		return err
	}
	return nil
}

// List returns the key ids stored for service, sorted. Values are never
// returned.
func (s *Store) List(service string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, sanitize(service)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) path(service, keyID string) (string, error) {
	if keyID == "" {
		return "", ErrInvalidKeyID
	}
	if service == "" {
		return "", errors.New("service cannot be empty")
	}
	return filepath.Join(s.dir, sanitize(service), sanitize(keyID)+fileExt), nil
}

// sanitize keeps names inside the store directory. Public keys are
// base58 plus a short prefix, so nothing valid is rewritten.
func sanitize(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_", "\x00", "_").Replace(name)
}
