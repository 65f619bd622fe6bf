// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleasehq/please/pkg/transport"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "drops stop words and short tokens",
			input: "Create a PR for the repo",
			want:  []string{"create", "pr", "repo"},
		},
		{
			name:  "non-alphanumeric runs become separators",
			input: "get_user-profile.v2",
			want:  []string{"get", "user", "profile", "v2"},
		},
		{
			name:  "order preserved with duplicates",
			input: "search search index search",
			want:  []string{"search", "search", "index", "search"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestSplitIdentifier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "create pull request", splitIdentifier("createPullRequest"))
	assert.Equal(t, "get user profile", splitIdentifier("get_user-profile"))
	assert.Equal(t, "http2 server", splitIdentifier("http2Server"))
}

func TestSearchableTextContents(t *testing.T) {
	t.Parallel()

	tool := transport.ToolDefinition{
		Name:        "srv__createIssue",
		Title:       "Create Issue",
		Description: "Opens a new issue in the tracker",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"issueTitle": map[string]any{
					"type":        "string",
					"description": "Headline for the issue",
				},
				"priority": map[string]any{
					"type": "string",
					"enum": []any{"low", "high"},
				},
				"labels": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":        "string",
						"description": "Label name",
					},
				},
			},
		},
		Metadata: map[string]any{"tags": []any{"issues", "tracker"}},
	}

	text := SearchableText(&tool)
	assert.Contains(t, text, "create issue")
	assert.Contains(t, text, "opens a new issue in the tracker")
	assert.Contains(t, text, "issue title")
	assert.Contains(t, text, "headline for the issue")
	assert.Contains(t, text, "low")
	assert.Contains(t, text, "high")
	assert.Contains(t, text, "label name")
	assert.Contains(t, text, "tracker")
	assert.Equal(t, text, SearchableText(&tool), "flattening must be deterministic")
}

func TestSearchableTextSortsProperties(t *testing.T) {
	t.Parallel()

	tool := transport.ToolDefinition{
		Name: "srv__t",
		InputSchema: map[string]any{
			"properties": map[string]any{
				"zebra": map[string]any{"type": "string"},
				"alpha": map[string]any{"type": "string"},
			},
		},
	}

	text := SearchableText(&tool)
	require.Contains(t, text, "alpha")
	require.Contains(t, text, "zebra")
	assert.Less(t, strings.Index(text, "alpha"), strings.Index(text, "zebra"))
}
