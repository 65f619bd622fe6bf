// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pleasehq/please/pkg/transport"
)

// stopWords is the fixed English stop-word set applied by the tokenizer.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "been": {}, "but": {}, "by": {}, "can": {}, "could": {},
	"do": {}, "does": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"how": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"its": {}, "more": {}, "most": {}, "not": {}, "of": {}, "on": {},
	"or": {}, "other": {}, "should": {}, "so": {}, "some": {}, "than": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "what": {}, "when": {},
	"which": {}, "will": {}, "with": {}, "would": {},
}

var (
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	nonAlnum      = regexp.MustCompile(`[^a-z0-9]+`)
)

// splitIdentifier breaks an identifier at camelCase boundaries and at
// underscores and hyphens, then lowercases it.
func splitIdentifier(name string) string {
	s := camelBoundary.ReplaceAllString(name, "$1 $2")
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.ToLower(s)
}

// Tokenize lowercases, replaces every non-alphanumeric run with a space,
// splits on whitespace and drops short tokens and stop words. Token order
// is preserved so term frequencies can be derived.
func Tokenize(text string) []string {
	normalized := nonAlnum.ReplaceAllString(strings.ToLower(text), " ")
	fields := strings.Fields(normalized)

	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < 2 {
			continue
		}
		if _, stop := stopWords[field]; stop {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// SearchableText flattens a tool definition into the text the search
// strategies operate on: identifier-split name, title, description, every
// input property with its schema recursively flattened, and metadata tags.
// Property order is sorted so the flattening is deterministic.
func SearchableText(tool *transport.ToolDefinition) string {
	parts := []string{splitIdentifier(tool.Name)}

	if tool.Title != "" {
		parts = append(parts, tool.Title)
	}
	if tool.Description != "" {
		parts = append(parts, tool.Description)
	}

	if props, ok := tool.InputSchema["properties"].(map[string]any); ok {
		for _, name := range sortedKeys(props) {
			parts = append(parts, splitIdentifier(name))
			if schema, ok := props[name].(map[string]any); ok {
				parts = append(parts, flattenSchema(schema)...)
			}
		}
	}

	if tags, ok := tool.Metadata["tags"].([]any); ok {
		for _, tag := range tags {
			parts = append(parts, fmt.Sprintf("%v", tag))
		}
	}

	return strings.ToLower(strings.Join(parts, " "))
}

// flattenSchema recursively extracts the human-meaningful parts of a JSON
// schema: description, type name, enum values, nested properties and items.
func flattenSchema(schema map[string]any) []string {
	var parts []string

	if desc, ok := schema["description"].(string); ok && desc != "" {
		parts = append(parts, desc)
	}
	if typ, ok := schema["type"].(string); ok && typ != "" {
		parts = append(parts, typ)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, v := range enum {
			parts = append(parts, fmt.Sprintf("%v", v))
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, name := range sortedKeys(props) {
			parts = append(parts, splitIdentifier(name))
			if nested, ok := props[name].(map[string]any); ok {
				parts = append(parts, flattenSchema(nested)...)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		parts = append(parts, flattenSchema(items)...)
	}

	return parts
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
