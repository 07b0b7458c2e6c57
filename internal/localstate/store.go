package localstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the local durable key-value mirror used for session-convenience
// state. Reads never fail: a missing or unreadable value reports absent.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// FileStore persists keys as a JSON object in a single file. A corrupt file is
// treated as empty rather than an error; the next write replaces it.
type FileStore struct {
	path string

	mu     sync.RWMutex
	values map[string]string
}

func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("local state file path is required")
	}
	s := &FileStore{path: path, values: make(map[string]string)}
	s.load()
	return s, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.persistLocked()
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.persistLocked()
}

func (s *FileStore) load() {
	b, err := os.ReadFile(s.path)
	if err != nil || len(b) == 0 {
		return
	}
	decoded := make(map[string]string)
	if err := json.Unmarshal(b, &decoded); err != nil {
		// corrupt state degrades to empty
		return
	}
	s.values = decoded
}

func (s *FileStore) persistLocked() error {
	b, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir local state dir: %w", err)
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write local state file: %w", err)
	}
	return nil
}

// MemoryStore keeps values in memory only. Useful for tests and for
// session-scoped persistence that should not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
