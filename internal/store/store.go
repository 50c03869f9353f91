// Package store persists small client flags such as the playback
// authorization flag across restarts.
package store

import (
	"context"
	"fmt"
	"sync"
)

// Kind names a flag store backend.
type Kind string

// Supported backends. The postgres backend lives in the db package.
const (
	KindMemory   Kind = "memory"
	KindFile     Kind = "file"
	KindBadger   Kind = "badger"
	KindPostgres Kind = "postgres"
)

// ParseKind validates a backend name. An empty name selects the file store.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "":
		return KindFile, nil
	case KindMemory, KindFile, KindBadger, KindPostgres:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown state store %q", s)
}

// MemoryStore keeps flags in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[string]bool)}
}

// GetFlag returns the flag value and whether it was set.
func (s *MemoryStore) GetFlag(_ context.Context, key string) (bool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.flags[key]
	return v, ok, nil
}

// SetFlag stores a flag value.
func (s *MemoryStore) SetFlag(_ context.Context, key string, value bool) error {
	s.mu.Lock()
	s.flags[key] = value
	s.mu.Unlock()
	return nil
}
