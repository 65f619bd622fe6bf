// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport implements the single-shot MCP client used to talk to
// upstream servers over stdio, streamable HTTP or SSE.
package transport

import (
	"errors"
	"fmt"
	"strings"
)

// PrefixSeparator joins an upstream server name and its original tool name
// into the federated, externally-visible tool name.
const PrefixSeparator = "__"

// Metadata keys carrying provenance on a federated tool.
const (
	MetaServerKey       = "server"
	MetaOriginalNameKey = "originalName"
)

// ErrUnsupportedTransport is returned for transport values outside
// stdio/http/sse.
var ErrUnsupportedTransport = errors.New("unsupported transport")

// ToolDefinition is the MCP tool object as received from an upstream. After
// federation its Name is the prefixed form and Metadata carries provenance.
type ToolDefinition struct {
	Name         string         `json:"name"`
	Title        string         `json:"title,omitempty"`
	Description  string         `json:"description,omitempty"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Provenance returns the originating server and original tool name from the
// federation metadata. ok is false when either is missing.
func (t *ToolDefinition) Provenance() (server, originalName string, ok bool) {
	if t.Metadata == nil {
		return "", "", false
	}
	server, _ = t.Metadata[MetaServerKey].(string)
	originalName, _ = t.Metadata[MetaOriginalNameKey].(string)
	return server, originalName, server != "" && originalName != ""
}

// PrefixedName builds the federated tool name for a server/tool pair.
func PrefixedName(server, tool string) string {
	return server + PrefixSeparator + tool
}

// SplitPrefixedName splits a federated tool name back into server and
// original tool name. The first separator wins, so tool names containing
// the separator survive the round trip.
func SplitPrefixedName(name string) (server, tool string, ok bool) {
	server, tool, ok = strings.Cut(name, PrefixSeparator)
	if !ok || server == "" || tool == "" {
		return "", "", false
	}
	return server, tool, true
}

// Content is one element of a tool result.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ToolCallResult is the upstream's raw tool result.
type ToolCallResult struct {
	Content           []Content `json:"content"`
	StructuredContent any       `json:"structuredContent,omitempty"`
	IsError           bool      `json:"isError,omitempty"`
}

// Text concatenates the textual content of a result for display.
func (r *ToolCallResult) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// ErrorText returns the first textual content of an isError result, or a
// generic message.
func (r *ToolCallResult) ErrorText() string {
	for _, c := range r.Content {
		if c.Type == "text" && c.Text != "" {
			return c.Text
		}
	}
	return "tool execution error"
}

// String implements fmt.Stringer for debug logging.
func (r *ToolCallResult) String() string {
	return fmt.Sprintf("ToolCallResult{isError=%v, content=%d}", r.IsError, len(r.Content))
}
