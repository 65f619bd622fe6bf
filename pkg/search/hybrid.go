// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pleasehq/please/pkg/index"
)

const (
	// DefaultRRFK is the standard reciprocal-rank-fusion constant.
	DefaultRRFK = 60

	// DefaultTopKMultiplier expands the sub-search topK so fusion has
	// enough candidates.
	DefaultTopKMultiplier = 3
)

// HybridStrategy fuses BM25 and embedding rankings with reciprocal rank
// fusion.
type HybridStrategy struct {
	bm25      *BM25Strategy
	embedding *EmbeddingStrategy

	rrfK           int
	topKMultiplier int
}

// HybridOption tunes the fusion parameters.
type HybridOption func(*HybridStrategy)

// WithRRFK overrides the fusion constant.
func WithRRFK(k int) HybridOption {
	return func(s *HybridStrategy) { s.rrfK = k }
}

// WithTopKMultiplier overrides the sub-search expansion factor.
func WithTopKMultiplier(m int) HybridOption {
	return func(s *HybridStrategy) { s.topKMultiplier = m }
}

// NewHybridStrategy composes the two sub-strategies.
func NewHybridStrategy(bm25 *BM25Strategy, embedding *EmbeddingStrategy, opts ...HybridOption) *HybridStrategy {
	s := &HybridStrategy{
		bm25:           bm25,
		embedding:      embedding,
		rrfK:           DefaultRRFK,
		topKMultiplier: DefaultTopKMultiplier,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize propagates to both sub-strategies.
func (s *HybridStrategy) Initialize(ctx context.Context) error {
	if err := s.bm25.Initialize(ctx); err != nil {
		return err
	}
	return s.embedding.Initialize(ctx)
}

// Dispose propagates to both sub-strategies.
func (s *HybridStrategy) Dispose() error {
	bm25Err := s.bm25.Dispose()
	if err := s.embedding.Dispose(); err != nil {
		return err
	}
	return bm25Err
}

// Search runs both sub-searches concurrently with an expanded topK and no
// threshold, then fuses the rankings.
func (s *HybridStrategy) Search(ctx context.Context, query string, tools []index.IndexedTool, opts Options) ([]Result, error) {
	hasEmbeddings := false
	for i := range tools {
		if len(tools[i].Embedding) > 0 {
			hasEmbeddings = true
			break
		}
	}
	if !hasEmbeddings {
		return nil, ErrNoEmbeddings
	}

	subOpts := Options{TopK: opts.topK() * s.topKMultiplier, Threshold: 0}

	var bm25Results, embeddingResults []Result
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		results, err := s.bm25.Search(groupCtx, query, tools, subOpts)
		if err != nil {
			return fmt.Errorf("bm25 sub-search failed: %w", err)
		}
		bm25Results = results
		return nil
	})
	group.Go(func() error {
		results, err := s.embedding.Search(groupCtx, query, tools, subOpts)
		if err != nil {
			return fmt.Errorf("embedding sub-search failed: %w", err)
		}
		embeddingResults = results
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	fused := s.fuse(bm25Results, embeddingResults)
	return finalize(fused, opts), nil
}

// fuse applies reciprocal rank fusion: each sub-result at zero-based rank r
// contributes 1/(k+r+1). Scores are normalized by the maximum. Results keep
// first-seen order so tied scores rank deterministically after the stable
// sort in finalize.
func (s *HybridStrategy) fuse(rankings ...[]Result) []Result {
	scores := map[string]float64{}
	names := []string{}
	meta := map[string]Result{}
	for _, ranking := range rankings {
		for rank, result := range ranking {
			if _, seen := meta[result.Name]; !seen {
				names = append(names, result.Name)
				meta[result.Name] = result
			}
			scores[result.Name] += 1 / float64(s.rrfK+rank+1)
		}
	}

	maxScore := 0.0
	for _, score := range scores {
		maxScore = max(maxScore, score)
	}

	fused := make([]Result, 0, len(names))
	for _, name := range names {
		result := meta[name]
		score := scores[name]
		if maxScore > 0 {
			score /= maxScore
		}
		result.Score = round3(score)
		result.MatchType = ModeHybrid
		fused = append(fused, result)
	}
	return fused
}
