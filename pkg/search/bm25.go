// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"math"

	"github.com/pleasehq/please/pkg/index"
)

// BM25 tuning constants (standard Okapi values).
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// BM25Strategy ranks tools by Okapi BM25 over the tokenized searchable
// text, normalized so the top result scores 1.0.
type BM25Strategy struct {
	stats *index.BM25Stats
}

// NewBM25Strategy creates a BM25 strategy. Stats may be nil, in which case
// they are computed from the documents passed to each search.
func NewBM25Strategy(stats *index.BM25Stats) *BM25Strategy {
	return &BM25Strategy{stats: stats}
}

// SetStats injects corpus statistics, replacing on-the-fly computation.
func (s *BM25Strategy) SetStats(stats *index.BM25Stats) {
	s.stats = stats
}

// Initialize is a no-op.
func (*BM25Strategy) Initialize(_ context.Context) error { return nil }

// Dispose is a no-op.
func (*BM25Strategy) Dispose() error { return nil }

// Search tokenizes the query with the index pipeline and scores every
// document containing at least one query term.
func (s *BM25Strategy) Search(_ context.Context, query string, tools []index.IndexedTool, opts Options) ([]Result, error) {
	terms := index.Tokenize(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}

	stats := s.stats
	if stats == nil {
		computed := index.ComputeBM25Stats(tools)
		stats = &computed
	}

	var results []Result
	maxScore := 0.0
	for i := range tools {
		score := bm25Score(terms, &tools[i], stats)
		if score == 0 {
			continue
		}
		maxScore = max(maxScore, score)
		results = append(results, resultFor(&tools[i], score, ModeBM25))
	}

	if maxScore > 0 {
		for i := range results {
			results[i].Score /= maxScore
		}
	}
	return finalize(results, opts), nil
}

func bm25Score(terms []string, tool *index.IndexedTool, stats *index.BM25Stats) float64 {
	docLen := float64(len(tool.Tokens))
	if docLen == 0 || stats.TotalDocuments == 0 {
		return 0
	}

	tf := map[string]int{}
	for _, token := range tool.Tokens {
		tf[token]++
	}

	n := float64(stats.TotalDocuments)
	score := 0.0
	for _, term := range terms {
		freq := float64(tf[term])
		if freq == 0 {
			continue
		}
		df := float64(stats.DocumentFrequencies[term])
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		tfNorm := freq * (bm25K1 + 1) / (freq + bm25K1*(1-bm25B+bm25B*docLen/stats.AvgDocLength))
		score += idf * tfNorm
	}
	return score
}
