package price

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ManualStore is the operator-maintained price override mapping,
// symbol_or_mint -> USD price, backed by a JSON file. It is reloaded
// at the start of every poll cycle so operators can update prices
// without restarting the process. A missing or corrupt file is
// treated as an empty mapping.
type ManualStore struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	prices map[string]float64
}

// NewManualStore creates the store and performs an initial load.
func NewManualStore(path string, logger *slog.Logger) *ManualStore {
	s := &ManualStore{
		path:   path,
		logger: logger,
		prices: make(map[string]float64),
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("failed to create price directory", "path", dir, "error", err)
		}
	}
	s.Refresh()
	return s
}

// Refresh reloads the mapping from disk.
func (s *ManualStore) Refresh() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read manual price file, treating as empty", "path", s.path, "error", err)
		}
		s.mu.Lock()
		s.prices = make(map[string]float64)
		s.mu.Unlock()
		return
	}

	prices := make(map[string]float64)
	if err := json.Unmarshal(data, &prices); err != nil {
		s.logger.Warn("corrupt manual price file, treating as empty", "path", s.path, "error", err)
		prices = make(map[string]float64)
	}

	s.mu.Lock()
	s.prices = prices
	s.mu.Unlock()
}

// Get returns the override price for a mint address or symbol,
// matching case-insensitively on symbols.
func (s *ManualStore) Get(mintOrSymbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.prices[mintOrSymbol]; ok {
		return p, true
	}
	if p, ok := s.prices[strings.ToUpper(mintOrSymbol)]; ok {
		return p, true
	}
	if p, ok := s.prices[strings.ToLower(mintOrSymbol)]; ok {
		return p, true
	}
	return 0, false
}

// Set writes one override price and persists the mapping. Used by the
// admin CLI, not by the watcher.
func (s *ManualStore) Set(mintOrSymbol string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[mintOrSymbol] = price
	data, err := json.MarshalIndent(s.prices, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manual prices: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manual price file: %w", err)
	}
	return nil
}

// All returns a copy of the current mapping.
func (s *ManualStore) All() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out
}
