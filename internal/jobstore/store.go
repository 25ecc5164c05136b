// Package jobstore persists the auto-claim configuration: which accounts
// claim under which program, through which endpoints, and when each claimed
// last and is due next. The file is shared with the wallet UI and is always
// rewritten whole.
package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/aatumaykin/autoclaim/internal/logger"
)

// ConfigError reports a job store that cannot be used. The feature is then
// treated as disabled.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("job store %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsMissing reports whether err is a ConfigError for an absent file.
func IsMissing(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce) && errors.Is(ce.Err, fs.ErrNotExist)
}

// Store reads and writes one job store file. Updates within a process are
// serialized.
type Store struct {
	path   string
	logger *logger.Logger
	mu     sync.Mutex
}

// New creates a Store for path.
func New(path string, log *logger.Logger) *Store {
	return &Store{path: path, logger: log}
}

// Path returns the file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the store. A missing, empty or unparsable file yields a
// *ConfigError.
func (s *Store) Load() (*AutoClaimConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// LoadOrDisabled reads the store, logging and returning a disabled empty
// configuration when it cannot be used.
func (s *Store) LoadOrDisabled() *AutoClaimConfig {
	cfg, err := s.Load()
	if err != nil {
		if IsMissing(err) {
			s.logger.Debug("job store not found, auto-claim disabled",
				logger.Field{Key: "file", Value: s.path})
		} else {
			s.logger.Error("job store unreadable, auto-claim disabled", err,
				logger.Field{Key: "file", Value: s.path})
		}
		return &AutoClaimConfig{Programs: map[string]*ProgramConfig{}}
	}
	return cfg
}

func (s *Store) load() (*AutoClaimConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &ConfigError{Path: s.path, Err: err}
	}
	if len(data) == 0 {
		return nil, &ConfigError{Path: s.path, Err: errors.New("empty file")}
	}

	var cfg AutoClaimConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Path: s.path, Err: err}
	}
	return &cfg, nil
}

// Save rewrites the whole store atomically.
func (s *Store) Save(cfg *AutoClaimConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(cfg)
}

// Update loads the store, applies fn and saves the result, all under the
// store lock. A missing file starts from an empty disabled configuration;
// an unparsable one is left untouched and reported. If fn returns an error
// nothing is written.
func (s *Store) Update(fn func(cfg *AutoClaimConfig) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		if !IsMissing(err) {
			return err
		}
		cfg = &AutoClaimConfig{Programs: map[string]*ProgramConfig{}}
	}

	if err := fn(cfg); err != nil {
		return err
	}
	return s.save(cfg)
}

func (s *Store) save(cfg *AutoClaimConfig) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("failed to create job store directory", err,
			logger.Field{Key: "dir", Value: dir})
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "\t")
	if err != nil {
		return fmt.Errorf("failed to marshal job store: %w", err)
	}

	tmpPath := s.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		s.logger.Error("failed to create temporary job store file", err,
			logger.Field{Key: "file", Value: tmpPath})
		return err
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		s.logger.Error("failed to rename temporary job store file", err,
			logger.Field{Key: "from", Value: tmpPath},
			logger.Field{Key: "to", Value: s.path})
		return err
	}

	s.logger.Debug("job store saved",
		logger.Field{Key: "programs", Value: len(cfg.Programs)},
		logger.Field{Key: "file", Value: s.path})
	return nil
}
