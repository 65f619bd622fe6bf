// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package embeddings

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a provider for one registered tag.
type Factory func(opts Options) (Provider, error)

// Registry maps location:model tags to provider factories. Custom factories
// can be added at runtime.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds or replaces the factory for a tag.
func (r *Registry) Register(tag string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = factory
}

// New constructs the provider registered under tag.
func (r *Registry) New(tag string, opts Options) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider %q, available: %v", tag, r.Tags())
	}
	return factory(opts)
}

// Tags lists the registered tags, sorted.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// DefaultTag is the provider used when none is requested.
const DefaultTag = "local:all-minilm"

// DefaultRegistry returns a registry with the built-in providers: two local
// Ollama-served models and two hosted embedding APIs.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("local:all-minilm", func(opts Options) (Provider, error) {
		return newOllamaProvider("local:all-minilm", "all-minilm", 384, 0, opts)
	})
	r.Register("local:nomic-embed-text", func(opts Options) (Provider, error) {
		// nomic-embed-text is Matryoshka-trained at 768 dims; truncating
		// to 256 keeps retrieval quality while shrinking the index.
		return newOllamaProvider("local:nomic-embed-text", "nomic-embed-text", 256, 768, opts)
	})
	r.Register("openai:text-embedding-3-small", func(opts Options) (Provider, error) {
		return newOpenAIProvider(opts)
	})
	r.Register("voyage:voyage-3-lite", func(opts Options) (Provider, error) {
		return newVoyageProvider(opts)
	})
	return r
}
