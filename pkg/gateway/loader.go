// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway serves the merged tool index over MCP: meta-tools for
// searching, listing and inspecting the federated upstream tools.
package gateway

import (
	"fmt"
	"sync"

	"github.com/pleasehq/please/pkg/config"
	"github.com/pleasehq/please/pkg/index"
	"github.com/pleasehq/please/pkg/logger"
)

// Loader resolves and caches the index the gateway serves. For scope "all"
// the user and project indexes are merged, project overriding user on name
// collision. The cache lives for the process lifetime until invalidated.
type Loader struct {
	resolver *config.Resolver
	scope    config.IndexScope

	// explicitPath, when set, bypasses scope resolution entirely.
	explicitPath string

	mu      sync.Mutex
	cached  *index.Index
	sources map[string]int
}

// NewLoader creates a loader for the given scope.
func NewLoader(resolver *config.Resolver, scope config.IndexScope) *Loader {
	return &Loader{resolver: resolver, scope: scope}
}

// NewLoaderAt creates a loader pinned to an explicit index file.
func NewLoaderAt(path string) *Loader {
	return &Loader{explicitPath: path}
}

// Load returns the (possibly merged) index, from cache when warm.
func (l *Loader) Load() (*index.Index, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil {
		return l.cached, nil
	}

	idx, err := l.load()
	if err != nil {
		return nil, err
	}
	l.cached = idx
	return idx, nil
}

// Invalidate drops the cache so the next Load re-reads from disk. Called
// after any index write.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.cached = nil
	l.sources = nil
	l.mu.Unlock()
}

// Sources reports the tool count each scope contributed to the last Load.
// Nil before the first successful Load.
func (l *Loader) Sources() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sources
}

func (l *Loader) load() (*index.Index, error) {
	if l.explicitPath != "" {
		idx, err := index.NewStore(l.explicitPath).Load()
		if err != nil {
			return nil, err
		}
		l.sources = map[string]int{"index": idx.TotalTools}
		return idx, nil
	}

	if l.scope != config.IndexScopeAll {
		idx, err := index.NewStore(l.resolver.IndexPath(l.scope)).Load()
		if err != nil {
			return nil, err
		}
		l.sources = map[string]int{string(l.scope): idx.TotalTools}
		return idx, nil
	}

	userIdx := l.loadOptional(config.IndexScopeUser)
	projectIdx := l.loadOptional(config.IndexScopeProject)
	if userIdx == nil && projectIdx == nil {
		return nil, fmt.Errorf("no index found for user or project scope, run: please index")
	}
	l.sources = map[string]int{}
	if userIdx != nil {
		l.sources[string(config.IndexScopeUser)] = userIdx.TotalTools
	}
	if projectIdx != nil {
		l.sources[string(config.IndexScopeProject)] = projectIdx.TotalTools
	}
	return index.MergeIndexes(userIdx, projectIdx), nil
}

func (l *Loader) loadOptional(scope config.IndexScope) *index.Index {
	store := index.NewStore(l.resolver.IndexPath(scope))
	idx, err := store.Load()
	if err != nil {
		logger.Debugf("No %s-scope index at %s: %v", scope, store.Path(), err)
		return nil
	}
	return idx
}
