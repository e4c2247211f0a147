package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore implements Store as a YAML document on disk. It is the default for the
// CLI, where a database would be overkill for a single setting.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// fileDocument is the on-disk layout
type fileDocument struct {
	Values map[string]string `yaml:"values"`
}

// NewFileStore creates a file store at path
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store path is empty")
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Close is a no-op; the file is only open during reads and writes
func (s *FileStore) Close() error {
	return nil
}

// Migrate creates the parent directory with owner-only permissions
func (s *FileStore) Migrate(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	return nil
}

// Get returns the value stored under key
func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", err
	}

	value, ok := doc.Values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores value under key
func (s *FileStore) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Values[key] = value
	return s.write(doc)
}

// Delete removes key
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Values[key]; !ok {
		return nil
	}
	delete(doc.Values, key)
	return s.write(doc)
}

func (s *FileStore) load() (*fileDocument, error) {
	doc := &fileDocument{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", s.path, err)
		}
	} else if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}

	if doc.Values == nil {
		doc.Values = make(map[string]string)
	}
	return doc, nil
}

func (s *FileStore) write(doc *fileDocument) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	s.logger.Debug("settings written", "path", s.path, "keys", len(doc.Values))
	return nil
}
