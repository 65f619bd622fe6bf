// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"fmt"
	"time"

	"github.com/pleasehq/please/pkg/logger"
	"github.com/pleasehq/please/pkg/transport"
)

// EmbeddingBatchSize bounds how many texts are embedded per provider call.
const EmbeddingBatchSize = 32

// Embedder is the slice of the embedding provider contract the builder
// needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// BuildOptions configures an index build.
type BuildOptions struct {
	// Embedder produces embeddings for searchable text. Nil disables
	// embeddings.
	Embedder Embedder

	// EmbeddingModel is the provider tag recorded in the index header.
	EmbeddingModel string

	// Metadata is stored verbatim for the regeneration detector.
	Metadata *BuildMetadata

	// Progress is invoked after each embedding batch with the number of
	// tools embedded so far.
	Progress func(done, total int)
}

// Build converts tool definitions into a complete persisted-index document:
// searchable text, tokens, optional embeddings and BM25 corpus statistics.
func Build(ctx context.Context, tools []transport.ToolDefinition, opts BuildOptions) (*Index, error) {
	indexed := make([]IndexedTool, len(tools))
	for i := range tools {
		text := SearchableText(&tools[i])
		indexed[i] = IndexedTool{
			Tool:           tools[i],
			SearchableText: text,
			Tokens:         Tokenize(text),
		}
	}

	if opts.Embedder != nil {
		if err := embedAll(ctx, indexed, opts); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	idx := &Index{
		Version:       Version,
		CreatedAt:     now,
		UpdatedAt:     now,
		TotalTools:    len(indexed),
		HasEmbeddings: opts.Embedder != nil && len(indexed) > 0,
		BM25Stats:     ComputeBM25Stats(indexed),
		Tools:         indexed,
		BuildMetadata: opts.Metadata,
	}
	if idx.HasEmbeddings {
		idx.EmbeddingModel = opts.EmbeddingModel
		idx.EmbeddingDimensions = opts.Embedder.Dimension()
	}
	return idx, nil
}

// embedAll fills in embeddings batch by batch. Batching is sequential to
// bound memory; the provider may parallelize within a batch.
func embedAll(ctx context.Context, indexed []IndexedTool, opts BuildOptions) error {
	total := len(indexed)
	for start := 0; start < total; start += EmbeddingBatchSize {
		end := min(start+EmbeddingBatchSize, total)

		texts := make([]string, 0, end-start)
		for _, tool := range indexed[start:end] {
			texts = append(texts, tool.SearchableText)
		}

		vectors, err := opts.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedding provider returned %d vectors for %d texts", len(vectors), len(texts))
		}

		for i, vector := range vectors {
			indexed[start+i].Embedding = vector
		}

		logger.Debugf("Embedded %d/%d tools", end, total)
		if opts.Progress != nil {
			opts.Progress(end, total)
		}
	}
	return nil
}

// ComputeBM25Stats derives corpus statistics from the indexed tools:
// document count, average token count and per-term document frequencies
// based on each document's unique tokens.
func ComputeBM25Stats(tools []IndexedTool) BM25Stats {
	stats := BM25Stats{
		DocumentFrequencies: map[string]int{},
		TotalDocuments:      len(tools),
	}
	if len(tools) == 0 {
		return stats
	}

	totalLength := 0
	for i := range tools {
		totalLength += len(tools[i].Tokens)

		seen := map[string]struct{}{}
		for _, token := range tools[i].Tokens {
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			stats.DocumentFrequencies[token]++
		}
	}
	stats.AvgDocLength = float64(totalLength) / float64(len(tools))
	return stats
}
