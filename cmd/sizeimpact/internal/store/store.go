// Package store persists snapshot documents as JSON files.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/sizeimpact/pkg/snapshot"
)

// ErrNotFound is returned by Load when the snapshot file does not exist.
var ErrNotFound = errors.New("snapshot file not found")

// JSONStore persists one snapshot in a single JSON file.
type JSONStore struct {
	path string
}

// NewJSONStore creates a store backed by the file at path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the snapshot from disk.
func (s *JSONStore) Load() (snapshot.RawSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return snapshot.RawSnapshot{}, fmt.Errorf("%w: %s", ErrNotFound, s.path)
	}
	if err != nil {
		return snapshot.RawSnapshot{}, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	snap, err := snapshot.Decode(data)
	if err != nil {
		return snapshot.RawSnapshot{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return snap, nil
}

// Save writes the snapshot to disk atomically.
func (s *JSONStore) Save(snap snapshot.RawSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := marshal(snap)
	if err != nil {
		return err
	}

	// Write to temp file first for atomic update
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp snapshot file: %w", err)
	}

	// Rename temp file to actual file (atomic on POSIX)
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath) // Clean up temp file
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	return nil
}

// Encode writes snap as a versioned document to w.
func Encode(w io.Writer, snap snapshot.RawSnapshot) error {
	data, err := marshal(snap)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshal(snap snapshot.RawSnapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snapshot.NewDocument(snap), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}
