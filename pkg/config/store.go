// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// lockTimeout is the maximum time to wait for a file lock
const lockTimeout = 1 * time.Second

// Store performs locked read-modify-write updates on one scope's config
// file. Two concurrent `please mcp add` invocations must not lose entries.
type Store struct {
	resolver *Resolver
	scope    Scope
}

// NewStore creates a store for the given scope.
func NewStore(resolver *Resolver, scope Scope) *Store {
	return &Store{resolver: resolver, scope: scope}
}

// Update acquires the file lock, loads the config, applies updateFn and
// writes the result back atomically.
func (s *Store) Update(ctx context.Context, updateFn func(*MCPConfig)) error {
	path := s.resolver.Path(s.scope)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Separate lock file for cross-platform compatibility.
	fileLock := flock.New(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock: timeout after %v", lockTimeout)
	}
	defer fileLock.Unlock()

	cfg := s.resolver.Load(s.scope)
	updateFn(cfg)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}

	if s.scope == ScopeLocal {
		if err := ensureGitignore(filepath.Dir(path)); err != nil {
			return fmt.Errorf("failed to update .gitignore: %w", err)
		}
	}
	return nil
}

// ensureGitignore appends the local config filename to the .gitignore next
// to it so per-checkout server entries never get committed.
func ensureGitignore(dir string) error {
	path := filepath.Join(dir, ".gitignore")
	data, err := os.ReadFile(path) // #nosec G304 - path derived from config dir
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == localConfigFile {
			return nil
		}
	}

	content := string(data)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += localConfigFile + "\n"
	return os.WriteFile(path, []byte(content), 0600)
}
