package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"
)

const stateFileName = "state.json"

// FileStore keeps flags in a JSON object on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore at path. An empty path uses the user
// config directory.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(stateFileName); err != nil {
			return nil, err
		}
	}
	return &FileStore{path: path}, nil
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// GetFlag returns the flag value and whether it was set.
func (s *FileStore) GetFlag(_ context.Context, key string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, err := s.read()
	if err != nil {
		return false, false, err
	}
	v, ok := flags[key]
	return v, ok, nil
}

// SetFlag stores a flag value, rewriting the file.
func (s *FileStore) SetFlag(_ context.Context, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, err := s.read()
	if err != nil {
		return err
	}
	flags[key] = value

	data, err := json.MarshalIndent(flags, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	return WriteFileAtomic(s.path, data)
}

func (s *FileStore) read() (map[string]bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]bool), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	flags := make(map[string]bool)
	if len(data) == 0 {
		return flags, nil
	}
	if err := json.Unmarshal(data, &flags); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	return flags, nil
}
