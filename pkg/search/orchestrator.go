// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"fmt"
	"time"

	"github.com/pleasehq/please/pkg/embeddings"
	"github.com/pleasehq/please/pkg/index"
)

// Request is one search invocation against the orchestrator.
type Request struct {
	Query     string  `json:"query"`
	Mode      Mode    `json:"mode,omitempty"`
	TopK      int     `json:"topK,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// Response carries the ranked results plus invocation metadata.
type Response struct {
	Tools        []Result `json:"tools"`
	Query        string   `json:"query"`
	Mode         Mode     `json:"mode"`
	TotalIndexed int      `json:"totalIndexed"`
	SearchTimeMs int64    `json:"searchTimeMs"`
}

// Orchestrator routes requests to the registered strategies.
type Orchestrator struct {
	strategies  map[Mode]Strategy
	defaultMode Mode
	defaultTopK int
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithDefaultMode sets the mode used when a request has none.
func WithDefaultMode(mode Mode) OrchestratorOption {
	return func(o *Orchestrator) { o.defaultMode = mode }
}

// WithDefaultTopK sets the topK used when a request has none.
func WithDefaultTopK(topK int) OrchestratorOption {
	return func(o *Orchestrator) { o.defaultTopK = topK }
}

// NewOrchestrator registers regex and BM25 unconditionally and, when a
// provider is supplied, embedding and hybrid as well.
func NewOrchestrator(stats *index.BM25Stats, provider embeddings.Provider, opts ...OrchestratorOption) *Orchestrator {
	bm25 := NewBM25Strategy(stats)
	o := &Orchestrator{
		strategies: map[Mode]Strategy{
			ModeRegex: NewRegexStrategy(),
			ModeBM25:  bm25,
		},
		defaultMode: ModeBM25,
		defaultTopK: DefaultTopK,
	}
	if provider != nil {
		embedding := NewEmbeddingStrategy(provider)
		o.strategies[ModeEmbedding] = embedding
		o.strategies[ModeHybrid] = NewHybridStrategy(bm25, embedding)
		o.defaultMode = ModeHybrid
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Modes lists the registered modes.
func (o *Orchestrator) Modes() []Mode {
	modes := make([]Mode, 0, len(o.strategies))
	for _, mode := range []Mode{ModeRegex, ModeBM25, ModeEmbedding, ModeHybrid} {
		if _, ok := o.strategies[mode]; ok {
			modes = append(modes, mode)
		}
	}
	return modes
}

// Initialize propagates to every registered strategy.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	for mode, strategy := range o.strategies {
		if err := strategy.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize %s strategy: %w", mode, err)
		}
	}
	return nil
}

// Dispose propagates to every registered strategy, returning the first
// error.
func (o *Orchestrator) Dispose() error {
	var firstErr error
	for _, strategy := range o.strategies {
		if err := strategy.Dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Search routes one request to its strategy and measures wall-clock time.
func (o *Orchestrator) Search(ctx context.Context, req Request, tools []index.IndexedTool) (*Response, error) {
	mode := req.Mode
	if mode == "" {
		mode = o.defaultMode
	}
	strategy, ok := o.strategies[mode]
	if !ok {
		return nil, fmt.Errorf("unknown search mode %q, available: %v", mode, o.Modes())
	}

	topK := req.TopK
	if topK <= 0 {
		topK = o.defaultTopK
	}

	start := time.Now()
	results, err := strategy.Search(ctx, req.Query, tools, Options{TopK: topK, Threshold: req.Threshold})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []Result{}
	}

	return &Response{
		Tools:        results,
		Query:        req.Query,
		Mode:         mode,
		TotalIndexed: len(tools),
		SearchTimeMs: time.Since(start).Milliseconds(),
	}, nil
}
