// Package storage owns the transient asset directory: downloaded media,
// transcoded audio and finished archives live here until their owning
// pipeline (or the defensive sweep) deletes them.
package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// PublicMount is the URL prefix under which the temp directory is served
// for client retrieval of archives and extracted audio.
const PublicMount = "/files"

// Store manages files below a single temp directory. Every on-disk name is
// derived from a per-run uuid, never from client-supplied display names.
type Store struct {
	dir string
}

// NewStore creates the temp directory if needed and returns a store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root of the transient asset directory.
func (s *Store) Dir() string {
	return s.dir
}

// NewRunDir creates a fresh uuid-named subdirectory for one pipeline run's
// intermediate files. The whole directory is removed when the run finishes.
func (s *Store) NewRunDir() (string, error) {
	dir := filepath.Join(s.dir, uuid.New().String())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run dir: %w", err)
	}
	return dir, nil
}

// Path returns the on-disk path for a file directly below the temp root.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// FileURL maps a file below the temp root to its public retrieval URL.
func (s *Store) FileURL(name string) string {
	return PublicMount + "/" + name
}

// Remove deletes the given paths (files or directories), logging failures.
// Cleanup is best-effort by contract and never surfaces to clients.
func (s *Store) Remove(paths ...string) {
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			log.Printf("Failed to delete temp asset %s: %v", p, err)
		}
	}
}

// SweepOlderThan removes top-level temp entries whose modification time is
// older than ttl and returns how many were removed. This is the defensive
// backstop for assets whose owning pipeline never got to delete them.
func (s *Store) SweepOlderThan(ttl time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Printf("Temp sweep failed to read %s: %v", s.dir, err)
		return 0
	}

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Printf("Temp sweep failed to delete %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}

// WithScratchFile writes data to a uuid-named scratch file, hands its path
// to fn, and guarantees deletion on every exit path. ext should include the
// leading dot.
func (s *Store) WithScratchFile(ext string, data []byte, fn func(path string) error) error {
	path := filepath.Join(s.dir, uuid.New().String()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scratch file: %w", err)
	}
	defer s.Remove(path)
	return fn(path)
}
