// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package search implements the ranked tool-search strategies served by the
// gateway: regex, BM25, embedding similarity and hybrid fusion.
package search

import (
	"context"
	"math"
	"sort"

	"github.com/pleasehq/please/pkg/index"
)

// Mode selects a search strategy.
type Mode string

const (
	ModeRegex     Mode = "regex"
	ModeBM25      Mode = "bm25"
	ModeEmbedding Mode = "embedding"
	ModeHybrid    Mode = "hybrid"
)

// Result is one ranked hit. Score is within [0,1].
type Result struct {
	Name        string  `json:"name"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score"`
	MatchType   Mode    `json:"matchType"`
}

// Options bound one search invocation.
type Options struct {
	// TopK truncates the ranked list. Zero means DefaultTopK.
	TopK int

	// Threshold drops results scoring below it.
	Threshold float64
}

// DefaultTopK is applied when a request does not specify one.
const DefaultTopK = 10

func (o Options) topK() int {
	if o.TopK <= 0 {
		return DefaultTopK
	}
	return o.TopK
}

// Strategy is the contract every search mode implements.
type Strategy interface {
	// Initialize prepares the strategy. Idempotent.
	Initialize(ctx context.Context) error

	// Search ranks the indexed tools against the query.
	Search(ctx context.Context, query string, tools []index.IndexedTool, opts Options) ([]Result, error)

	// Dispose releases resources. Safe to call multiple times.
	Dispose() error
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// finalize sorts descending, applies the threshold and truncates to topK.
func finalize(results []Result, opts Options) []Result {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	kept := results[:0]
	for _, r := range results {
		if r.Score >= opts.Threshold {
			kept = append(kept, r)
		}
	}
	if k := opts.topK(); len(kept) > k {
		kept = kept[:k]
	}
	return kept
}

func resultFor(tool *index.IndexedTool, score float64, mode Mode) Result {
	return Result{
		Name:        tool.Tool.Name,
		Title:       tool.Tool.Title,
		Description: tool.Tool.Description,
		Score:       score,
		MatchType:   mode,
	}
}
