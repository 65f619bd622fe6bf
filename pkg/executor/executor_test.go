// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleasehq/please/pkg/auth/oauth"
	"github.com/pleasehq/please/pkg/config"
	"github.com/pleasehq/please/pkg/gateway"
	"github.com/pleasehq/please/pkg/index"
	"github.com/pleasehq/please/pkg/transport"
)

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) CachedAccessToken(_ context.Context, _ string, _ *config.OAuthOptions) (string, error) {
	return f.token, f.err
}

func newEchoUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	mcpServer := server.NewMCPServer("upstream", "1.0.0", server.WithToolCapabilities(false))
	mcpServer.AddTool(
		mcp.NewTool("echo",
			mcp.WithDescription("Echo the input"),
			mcp.WithString("text", mcp.Required()),
		),
		func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			text, err := req.RequireString("text")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText("echo: " + text), nil
		},
	)

	ts := httptest.NewServer(server.NewStreamableHTTPServer(mcpServer))
	t.Cleanup(ts.Close)
	return ts
}

// loaderFor persists a single-tool index and returns a loader pinned to it.
func loaderFor(t *testing.T, tools ...transport.ToolDefinition) *gateway.Loader {
	t.Helper()

	indexed := make([]index.IndexedTool, len(tools))
	for i := range tools {
		text := index.SearchableText(&tools[i])
		indexed[i] = index.IndexedTool{Tool: tools[i], SearchableText: text, Tokens: index.Tokenize(text)}
	}

	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, index.NewStore(path).Save(&index.Index{
		Version:    index.Version,
		TotalTools: len(indexed),
		BM25Stats:  index.ComputeBM25Stats(indexed),
		Tools:      indexed,
	}))
	return gateway.NewLoaderAt(path)
}

func prefixedTool(serverName, originalName string) transport.ToolDefinition {
	return transport.ToolDefinition{
		Name: serverName + transport.PrefixSeparator + originalName,
		Metadata: map[string]any{
			transport.MetaServerKey:       serverName,
			transport.MetaOriginalNameKey: originalName,
		},
	}
}

func assertFailure(t *testing.T, err error, code FailureCode) *Error {
	t.Helper()
	var execErr *Error
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, code, execErr.Code)
	return execErr
}

func TestExecuteSuccess(t *testing.T) {
	t.Parallel()

	upstream := newEchoUpstream(t)
	loader := loaderFor(t, prefixedTool("srv", "echo"))
	servers := map[string]config.ServerConfig{"srv": {URL: upstream.URL}}

	result, err := New(loader, servers, nil).Execute(context.Background(),
		"srv__echo", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "echo: hi", result.Text())
}

func TestExecutePreservesUpstreamIsError(t *testing.T) {
	t.Parallel()

	upstream := newEchoUpstream(t)
	loader := loaderFor(t, prefixedTool("srv", "echo"))
	servers := map[string]config.ServerConfig{"srv": {URL: upstream.URL}}

	// Missing required argument makes the upstream return isError=true.
	result, err := New(loader, servers, nil).Execute(context.Background(), "srv__echo", nil)
	require.NoError(t, err, "upstream isError is not an executor failure")
	assert.True(t, result.IsError)
}

func TestExecuteToolNotFound(t *testing.T) {
	t.Parallel()

	loader := loaderFor(t, prefixedTool("srv", "echo"))
	_, err := New(loader, nil, nil).Execute(context.Background(), "srv__missing", nil)

	execErr := assertFailure(t, err, ToolNotFound)
	assert.Contains(t, execErr.Hint, "please search")
}

func TestExecuteMetadataMissing(t *testing.T) {
	t.Parallel()

	loader := loaderFor(t, transport.ToolDefinition{Name: "srv__bare"})
	_, err := New(loader, nil, nil).Execute(context.Background(), "srv__bare", nil)
	assertFailure(t, err, MetadataMissing)
}

func TestExecuteServerNotConfigured(t *testing.T) {
	t.Parallel()

	loader := loaderFor(t, prefixedTool("gone", "echo"))
	_, err := New(loader, map[string]config.ServerConfig{}, nil).Execute(context.Background(), "gone__echo", nil)

	execErr := assertFailure(t, err, ServerNotConfigured)
	assert.Contains(t, execErr.Hint, "please mcp add gone")
}

func TestExecuteAuthRequired(t *testing.T) {
	t.Parallel()

	loader := loaderFor(t, prefixedTool("srv", "echo"))
	servers := map[string]config.ServerConfig{
		"srv": {
			URL:           "https://mcp.example.com",
			Authorization: &config.Authorization{Type: config.AuthTypeOAuth},
		},
	}

	_, err := New(loader, servers, &fakeTokens{err: oauth.ErrNoSession}).Execute(
		context.Background(), "srv__echo", nil)

	execErr := assertFailure(t, err, AuthRequired)
	assert.Contains(t, execErr.Hint, "please mcp auth srv")
}

func TestExecuteExecutionFailed(t *testing.T) {
	t.Parallel()

	loader := loaderFor(t, prefixedTool("srv", "echo"))
	servers := map[string]config.ServerConfig{"srv": {URL: "http://127.0.0.1:1"}}

	_, err := New(loader, servers, nil).Execute(context.Background(), "srv__echo", nil)
	assertFailure(t, err, ExecutionFailed)
}

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	withHint := &Error{Code: AuthRequired, Message: "no session", Hint: "run: please mcp auth x"}
	assert.Equal(t, "AUTH_REQUIRED: no session (run: please mcp auth x)", withHint.Error())

	withoutHint := &Error{Code: ExecutionFailed, Message: "boom"}
	assert.Equal(t, "EXECUTION_FAILED: boom", withoutHint.Error())
}
