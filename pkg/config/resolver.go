// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pleasehq/please/pkg/logger"
)

// PleaseDirName is the per-directory configuration directory.
const PleaseDirName = ".please"

const (
	userConfigFile    = "mcp.json"
	projectConfigFile = "mcp.json"
	localConfigFile   = "mcp.local.json"
)

// IndexScope selects which config scopes participate in an index build.
type IndexScope string

const (
	// IndexScopeUser builds from the user config only.
	IndexScopeUser IndexScope = "user"
	// IndexScopeProject builds from the full user+project+local federation.
	IndexScopeProject IndexScope = "project"
	// IndexScopeAll is a serving-time scope that merges both indexes.
	IndexScopeAll IndexScope = "all"
)

// Fingerprint captures the identity of one config file for staleness checks.
type Fingerprint struct {
	Exists bool   `json:"exists"`
	Hash   string `json:"hash,omitempty"`
}

// Fingerprints maps scope name to fingerprint, as persisted in index
// build metadata.
type Fingerprints map[string]Fingerprint

// Resolver computes config paths and loads, merges and fingerprints the
// three scope files.
type Resolver struct {
	homeDir string
	workDir string
}

// NewResolver creates a resolver rooted at the user's home directory and the
// current working directory.
func NewResolver() (*Resolver, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine home directory: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	return &Resolver{homeDir: home, workDir: cwd}, nil
}

// NewResolverAt creates a resolver with explicit roots. Used by tests and by
// commands that accept an explicit project directory.
func NewResolverAt(homeDir, workDir string) *Resolver {
	return &Resolver{homeDir: homeDir, workDir: workDir}
}

// Path returns the config file path for a scope.
func (r *Resolver) Path(scope Scope) string {
	switch scope {
	case ScopeUser:
		return filepath.Join(r.homeDir, PleaseDirName, userConfigFile)
	case ScopeProject:
		return filepath.Join(r.workDir, PleaseDirName, projectConfigFile)
	case ScopeLocal:
		return filepath.Join(r.workDir, PleaseDirName, localConfigFile)
	}
	return ""
}

// IndexPath returns the persisted index location for an index scope.
func (r *Resolver) IndexPath(scope IndexScope) string {
	if scope == IndexScopeUser {
		return filepath.Join(r.homeDir, PleaseDirName, "mcp", "index.json")
	}
	return filepath.Join(r.workDir, PleaseDirName, "mcp", "index.json")
}

// Load reads and parses one scope file. A missing file returns an empty
// config. A parse failure also returns an empty config: the broken file is
// treated as absent for merging, while its fingerprint still changes, so the
// index is invalidated rather than the whole CLI failing.
func (r *Resolver) Load(scope Scope) *MCPConfig {
	path := r.Path(scope)
	data, err := os.ReadFile(path) // #nosec G304 - path derived from scope roots
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("Failed to read %s config %s: %v", scope, path, err)
		}
		return &MCPConfig{MCPServers: map[string]ServerConfig{}}
	}

	var cfg MCPConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		logger.Warnf("Ignoring unparseable %s config %s: %v", scope, path, err)
		return &MCPConfig{MCPServers: map[string]ServerConfig{}}
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]ServerConfig{}
	}
	return &cfg
}

// scopesFor lists the config scopes visible to an index scope, in merge
// order (lowest precedence first).
func scopesFor(scope IndexScope) []Scope {
	if scope == IndexScopeUser {
		return []Scope{ScopeUser}
	}
	return []Scope{ScopeUser, ScopeProject, ScopeLocal}
}

// ResolveServers merges the scope files visible to the given index scope.
// Later scopes win on server-name collision.
func (r *Resolver) ResolveServers(scope IndexScope) map[string]ServerConfig {
	merged := map[string]ServerConfig{}
	for _, s := range scopesFor(scope) {
		for name, server := range r.Load(s).MCPServers {
			if _, ok := merged[name]; ok {
				logger.Debugf("Server %q overridden by %s scope", name, s)
			}
			merged[name] = server
		}
	}
	return merged
}

// Fingerprint hashes one scope file's exact bytes. Unreadable and missing
// files both report exists=false; unparseable files still hash, so edits to
// a broken file invalidate the index.
func (r *Resolver) Fingerprint(scope Scope) Fingerprint {
	data, err := os.ReadFile(r.Path(scope)) // #nosec G304 - path derived from scope roots
	if err != nil {
		return Fingerprint{Exists: false}
	}
	sum := sha256.Sum256(data)
	return Fingerprint{Exists: true, Hash: hex.EncodeToString(sum[:])}
}

// Fingerprints captures all three scope fingerprints keyed by scope name.
func (r *Resolver) Fingerprints() Fingerprints {
	return Fingerprints{
		string(ScopeUser):    r.Fingerprint(ScopeUser),
		string(ScopeProject): r.Fingerprint(ScopeProject),
		string(ScopeLocal):   r.Fingerprint(ScopeLocal),
	}
}
