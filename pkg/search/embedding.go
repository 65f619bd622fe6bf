// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pleasehq/please/pkg/embeddings"
	"github.com/pleasehq/please/pkg/index"
)

// ErrNoEmbeddings indicates the index has no embedded documents to search.
var ErrNoEmbeddings = errors.New("No tools with embeddings found in index. Rebuild the index with embeddings enabled")

// EmbeddingStrategy ranks tools by cosine similarity between the embedded
// query and each tool's stored embedding.
type EmbeddingStrategy struct {
	provider embeddings.Provider

	initOnce sync.Once
	initErr  error
}

// NewEmbeddingStrategy creates an embedding strategy over the given
// provider.
func NewEmbeddingStrategy(provider embeddings.Provider) *EmbeddingStrategy {
	return &EmbeddingStrategy{provider: provider}
}

// Initialize prepares the provider once; subsequent calls return the first
// outcome.
func (s *EmbeddingStrategy) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.provider.Initialize(ctx)
	})
	return s.initErr
}

// Dispose releases the provider.
func (s *EmbeddingStrategy) Dispose() error {
	return s.provider.Dispose()
}

// Search embeds the query and scores every tool that carries an embedding.
// Cosine similarity is mapped from [-1,1] to [0,1].
func (s *EmbeddingStrategy) Search(ctx context.Context, query string, tools []index.IndexedTool, opts Options) ([]Result, error) {
	candidates := make([]*index.IndexedTool, 0, len(tools))
	for i := range tools {
		if len(tools[i].Embedding) > 0 {
			candidates = append(candidates, &tools[i])
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoEmbeddings
	}

	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	queryVector, err := s.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var results []Result
	for _, tool := range candidates {
		cos, err := embeddings.CosineSimilarity(queryVector, tool.Embedding)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool.Tool.Name, err)
		}
		results = append(results, resultFor(tool, (cos+1)/2, ModeEmbedding))
	}
	return finalize(results, opts), nil
}
