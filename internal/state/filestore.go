package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists cursors in a single JSON file, one entry per entity.
// Safe for concurrent use by multiple entity streams.
type FileStore struct {
	path string

	mu      sync.Mutex
	cursors map[string]Cursor
}

// NewFileStore opens (or prepares to create) a JSON state file.
// A missing file is not an error: it means a first run with no cursors.
func NewFileStore(path string) (*FileStore, error) {
	store := &FileStore{
		path:    path,
		cursors: make(map[string]Cursor),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &store.cursors); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}

	return store, nil
}

// Get returns the cursor for an entity, if one has been persisted.
func (s *FileStore) Get(_ context.Context, entity string) (Cursor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor, ok := s.cursors[entity]
	return cursor, ok, nil
}

// Set persists the cursor for an entity, rewriting the state file
// atomically via a temp file rename.
func (s *FileStore) Set(_ context.Context, entity string, cursor Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[entity] = cursor

	data, err := json.MarshalIndent(s.cursors, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".aptemsync-state-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}
