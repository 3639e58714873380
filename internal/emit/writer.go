// Package emit writes extracted records as newline-delimited JSON, either
// interleaved on a single stream or split into one file per entity.
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// StreamWriter interleaves every entity's records on one stream, wrapping
// each record in an envelope naming its entity.
type StreamWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStreamWriter writes envelopes to w.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{enc: json.NewEncoder(w)}
}

type envelope struct {
	Entity string                 `json:"entity"`
	Record map[string]interface{} `json:"record"`
}

// Emit writes one record envelope as a single JSON line.
func (s *StreamWriter) Emit(entity string, record map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(envelope{Entity: entity, Record: record}); err != nil {
		return fmt.Errorf("emit %s record: %w", entity, err)
	}
	return nil
}

// DirectoryWriter writes each entity's records to its own
// <directory>/<entity>.ndjson file, one raw record per line. Files are
// opened lazily on first record and appended to, so a resumed run
// continues the same files.
type DirectoryWriter struct {
	directory string

	mu    sync.Mutex
	files map[string]*os.File
}

// NewDirectoryWriter creates the output directory if needed.
func NewDirectoryWriter(directory string) (*DirectoryWriter, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &DirectoryWriter{
		directory: directory,
		files:     make(map[string]*os.File),
	}, nil
}

// Emit appends one record to the entity's file.
func (d *DirectoryWriter) Emit(entity string, record map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	file, err := d.file(entity)
	if err != nil {
		return err
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("emit %s record: %w", entity, err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("emit %s record: %w", entity, err)
	}
	return nil
}

// Close flushes and closes every open entity file.
func (d *DirectoryWriter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for entity, file := range d.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s output: %w", entity, err)
		}
		delete(d.files, entity)
	}
	return firstErr
}

func (d *DirectoryWriter) file(entity string) (*os.File, error) {
	if file, ok := d.files[entity]; ok {
		return file, nil
	}
	path := filepath.Join(d.directory, entity+".ndjson")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s output: %w", entity, err)
	}
	d.files[entity] = file
	return file, nil
}
