// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// lockTimeout is the maximum time to wait for the index file lock
const lockTimeout = 1 * time.Second

// ErrVersionMismatch is returned when a persisted index has a different
// major format version.
var ErrVersionMismatch = errors.New("index version mismatch")

// Store persists one index document at a fixed path.
type Store struct {
	path string
}

// NewStore creates a store for the given index file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the index file location.
func (s *Store) Path() string {
	return s.path
}

func majorVersion(version string) string {
	major, _, _ := strings.Cut(version, ".")
	return major
}

// Load reads and validates the persisted index. A major version mismatch is
// a hard error; everything else surfaces as a normal read/parse error.
func (s *Store) Load() (*Index, error) {
	data, err := os.ReadFile(s.path) // #nosec G304 - path fixed at construction
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", s.path, err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse index %s: %w", s.path, err)
	}

	if majorVersion(idx.Version) != majorVersion(Version) {
		return nil, fmt.Errorf("%w: index is %q, this build reads %q", ErrVersionMismatch, idx.Version, Version)
	}
	if idx.BM25Stats.DocumentFrequencies == nil {
		idx.BM25Stats.DocumentFrequencies = map[string]int{}
	}
	return &idx, nil
}

// Save writes the index under the file lock: write to a temp file in the
// same directory, then rename over the destination. Two concurrent
// `please index` invocations must not interleave writes.
func (s *Store) Save(idx *Index) error {
	idx.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	// Separate lock file for cross-platform compatibility.
	fileLock := flock.New(s.path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock: timeout after %v", lockTimeout)
	}
	defer fileLock.Unlock()

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize index: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace index: %w", err)
	}
	return nil
}

// Exists reports whether a loadable index is present. Unreadable or
// incompatible files count as absent so the rebuild gate regenerates them.
func (s *Store) Exists() bool {
	_, err := s.Load()
	return err == nil
}

// CreateEmpty writes a zero-tool index so a fresh deployment serves empty
// results instead of failing.
func (s *Store) CreateEmpty(metadata *BuildMetadata) error {
	now := time.Now().UTC()
	return s.Save(&Index{
		Version:       Version,
		CreatedAt:     now,
		UpdatedAt:     now,
		BM25Stats:     BM25Stats{DocumentFrequencies: map[string]int{}},
		Tools:         []IndexedTool{},
		BuildMetadata: metadata,
	})
}

// GetMetadata returns the index header without the tools array.
func (s *Store) GetMetadata() (*Metadata, error) {
	idx, err := s.Load()
	if err != nil {
		return nil, err
	}
	return &Metadata{
		Version:             idx.Version,
		CreatedAt:           idx.CreatedAt,
		UpdatedAt:           idx.UpdatedAt,
		TotalTools:          idx.TotalTools,
		HasEmbeddings:       idx.HasEmbeddings,
		EmbeddingModel:      idx.EmbeddingModel,
		EmbeddingDimensions: idx.EmbeddingDimensions,
		BuildMetadata:       idx.BuildMetadata,
	}, nil
}
