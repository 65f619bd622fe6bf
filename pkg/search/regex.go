// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/pleasehq/please/pkg/index"
	"github.com/pleasehq/please/pkg/logger"
)

// RegexStrategy matches the query as a case-insensitive pattern against each
// tool's searchable text. An invalid pattern degrades to a literal search.
type RegexStrategy struct{}

// NewRegexStrategy creates the regex strategy.
func NewRegexStrategy() *RegexStrategy {
	return &RegexStrategy{}
}

// Initialize is a no-op; the pattern is compiled per query.
func (*RegexStrategy) Initialize(_ context.Context) error { return nil }

// Dispose is a no-op.
func (*RegexStrategy) Dispose() error { return nil }

// Search scores each tool by a bounded composite of match density, match
// count, first-match position and exact-match bonus.
func (*RegexStrategy) Search(_ context.Context, query string, tools []index.IndexedTool, opts Options) ([]Result, error) {
	pattern, err := regexp.Compile("(?i)" + query)
	if err != nil {
		logger.Debugf("Query %q is not a valid pattern, searching literally", query)
		pattern = regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
	}
	queryLower := strings.ToLower(query)

	var results []Result
	for i := range tools {
		tool := &tools[i]
		score := scoreRegexMatches(pattern, tool.SearchableText, queryLower)
		if score == 0 {
			continue
		}
		results = append(results, resultFor(tool, score, ModeRegex))
	}
	return finalize(results, opts), nil
}

func scoreRegexMatches(pattern *regexp.Regexp, text, queryLower string) float64 {
	if len(text) == 0 {
		return 0
	}
	matches := pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return 0
	}

	matchedChars := 0
	exactBonus := 0.0
	for _, m := range matches {
		matchedChars += m[1] - m[0]
		if strings.ToLower(text[m[0]:m[1]]) == queryLower {
			exactBonus = 0.3
		}
	}

	density := float64(matchedChars) / float64(len(text))
	positionBonus := 1 - float64(matches[0][0])/float64(len(text))

	score := 2*density + 0.1*float64(len(matches)) + 0.2*positionBonus + exactBonus
	return round3(min(1, score))
}
