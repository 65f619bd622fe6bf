// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleasehq/please/pkg/auth/oauth"
	"github.com/pleasehq/please/pkg/config"
)

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) CachedAccessToken(_ context.Context, _ string, _ *config.OAuthOptions) (string, error) {
	return f.token, f.err
}

func newToolServer(t *testing.T, toolNames ...string) *httptest.Server {
	t.Helper()

	mcpServer := server.NewMCPServer("upstream", "1.0.0", server.WithToolCapabilities(false))
	for _, name := range toolNames {
		mcpServer.AddTool(
			mcp.NewTool(name, mcp.WithDescription("tool "+name)),
			func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultText("ok"), nil
			},
		)
	}

	ts := httptest.NewServer(server.NewStreamableHTTPServer(mcpServer))
	t.Cleanup(ts.Close)
	return ts
}

func TestDiscoverCollectsToolsInNameOrder(t *testing.T) {
	t.Parallel()

	alpha := newToolServer(t, "ping")
	beta := newToolServer(t, "echo", "stat")

	servers := map[string]config.ServerConfig{
		"beta":  {URL: beta.URL},
		"alpha": {URL: alpha.URL},
	}

	results, err := NewEngine(nil).Discover(context.Background(), servers, Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Server)
	assert.Equal(t, "beta", results[1].Server)

	tools := Tools(results)
	require.Len(t, tools, 3)
	assert.Equal(t, "alpha__ping", tools[0].Name)
	assert.Empty(t, Errors(results))
}

func TestDiscoverSkipsExcludedServers(t *testing.T) {
	t.Parallel()

	upstream := newToolServer(t, "ping")
	servers := map[string]config.ServerConfig{
		"keep": {URL: upstream.URL},
		"skip": {URL: upstream.URL},
	}

	results, err := NewEngine(nil).Discover(context.Background(), servers, Options{Exclude: []string{"skip"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep", results[0].Server)
}

func TestDiscoverRecordsFailureAndContinues(t *testing.T) {
	t.Parallel()

	healthy := newToolServer(t, "ping")
	servers := map[string]config.ServerConfig{
		"broken":  {URL: "http://127.0.0.1:1"},
		"healthy": {URL: healthy.URL},
	}

	results, err := NewEngine(nil).Discover(context.Background(), servers, Options{})
	require.NoError(t, err, "per-upstream failure does not abort the pass")
	require.Len(t, results, 2)

	errs := Errors(results)
	require.Contains(t, errs, "broken")
	assert.NotContains(t, errs, "healthy")
	assert.Len(t, Tools(results), 1)
}

func TestDiscoverOAuthWithoutSessionNamesAuthVerb(t *testing.T) {
	t.Parallel()

	servers := map[string]config.ServerConfig{
		"protected": {
			URL:           "https://mcp.example.com",
			Authorization: &config.Authorization{Type: config.AuthTypeOAuth},
		},
	}

	engine := NewEngine(&fakeTokens{err: oauth.ErrNoSession})
	results, err := engine.Discover(context.Background(), servers, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "please mcp auth protected")
}

func TestDiscoverBearerToken(t *testing.T) {
	t.Parallel()

	upstream := newToolServer(t, "ping")
	servers := map[string]config.ServerConfig{
		"tokened": {
			URL:           upstream.URL,
			Authorization: &config.Authorization{Type: config.AuthTypeBearer, Token: "abc"},
		},
	}

	results, err := NewEngine(nil).Discover(context.Background(), servers, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func TestDiscoverProgressPhases(t *testing.T) {
	t.Parallel()

	upstream := newToolServer(t, "ping")
	servers := map[string]config.ServerConfig{"srv": {URL: upstream.URL}}

	var phases []Phase
	_, err := NewEngine(nil).Discover(context.Background(), servers, Options{
		Progress: func(server string, phase Phase, _ string) {
			assert.Equal(t, "srv", server)
			phases = append(phases, phase)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseConnecting, PhaseFetching, PhaseDone}, phases)
}

func TestDiscoverHonorsCancellationBetweenUpstreams(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	upstream := newToolServer(t, "ping")
	servers := map[string]config.ServerConfig{"srv": {URL: upstream.URL}}

	results, err := NewEngine(nil).Discover(ctx, servers, Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestDiscoverUnknownAuthType(t *testing.T) {
	t.Parallel()

	servers := map[string]config.ServerConfig{
		"weird": {
			URL:           "https://x.example",
			Authorization: &config.Authorization{Type: "kerberos"},
		},
	}

	results, err := NewEngine(nil).Discover(context.Background(), servers, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "unknown authorization type")
}

var _ TokenSource = (*oauth.Manager)(nil)
