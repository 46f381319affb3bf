// Package file implements the snapshot store on the local filesystem.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mdmirror/mdmirror/internal/hackmd"
)

// Store persists the page snapshot as a single JSON file. Reads and
// writes are wholesale; Save fully replaces any prior snapshot.
type Store struct {
	path   string
	logger *zap.Logger
}

// New creates a file-backed snapshot store.
func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, hackmd.MissingArgument("snapshot")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}, nil
}

// Save writes the entire collection, replacing the previous snapshot.
// The write goes through a temp file and rename so a crash mid-write
// never leaves a truncated snapshot behind.
func (s *Store) Save(_ context.Context, pages hackmd.PageList) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(pages); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	s.logger.Info("snapshot written",
		zap.String("path", s.path),
		zap.Int("pages", len(pages)),
	)
	return nil
}

// Load reads the snapshot wholesale.
func (s *Store) Load(_ context.Context) (hackmd.PageList, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var pages hackmd.PageList
	if err := json.NewDecoder(f).Decode(&pages); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	s.logger.Info("snapshot loaded",
		zap.String("path", s.path),
		zap.Int("pages", len(pages)),
	)
	return pages, nil
}

// Exists reports whether a snapshot file is present.
func (s *Store) Exists(_ context.Context) (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat snapshot: %w", err)
	}
	return !info.IsDir(), nil
}
