// Package cursor persists per-address polling progress: the last fully
// processed transaction signature for each watched address.
package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the per-address cursor mapping. An empty signature
// from Load means the address has never been observed. Saves must be
// durable immediately; a crash loses at most the in-flight address's
// unsaved progress.
type Store interface {
	Load(ctx context.Context, address string) (string, error)
	Save(ctx context.Context, address, signature string) error
}

// FileStore keeps the cursor mapping in a single JSON file,
// address -> signature. A missing or corrupt file is treated as an
// empty mapping, never a fatal error.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore creates a file-backed store at the given path, creating
// the parent directory if needed.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cursor directory: %w", err)
		}
	}
	return &FileStore{path: path, logger: logger}, nil
}

// read loads the full mapping. Callers hold s.mu.
func (s *FileStore) read() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read cursor file, treating as empty", "path", s.path, "error", err)
		}
		return map[string]string{}
	}
	cursors := make(map[string]string)
	if err := json.Unmarshal(data, &cursors); err != nil {
		s.logger.Warn("corrupt cursor file, treating as empty", "path", s.path, "error", err)
		return map[string]string{}
	}
	return cursors
}

// Load returns the last processed signature for the address, or ""
// when the address has never been observed.
func (s *FileStore) Load(ctx context.Context, address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()[address], nil
}

// Save writes the cursor for one address. The file is rewritten
// atomically via a temp file so a crash mid-write can't corrupt
// previously committed cursors.
func (s *FileStore) Save(ctx context.Context, address, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursors := s.read()
	cursors[address] = signature

	data, err := json.MarshalIndent(cursors, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cursors: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cursor file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace cursor file: %w", err)
	}
	return nil
}

// All returns a copy of the full cursor mapping.
func (s *FileStore) All(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for addr, sig := range s.read() {
		out[addr] = sig
	}
	return out, nil
}

// Clear removes all cursors. Every address behaves as never observed
// on the next cycle (cursors re-seed, history is not replayed).
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cursor file: %w", err)
	}
	return nil
}
