// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package discovery fans out across the configured upstream servers and
// collects their tool lists for indexing.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/pleasehq/please/pkg/auth/oauth"
	"github.com/pleasehq/please/pkg/config"
	"github.com/pleasehq/please/pkg/logger"
	"github.com/pleasehq/please/pkg/transport"
)

// Phase tags one progress callback invocation.
type Phase string

const (
	PhaseConnecting     Phase = "connecting"
	PhaseAuthenticating Phase = "authenticating"
	PhaseFetching       Phase = "fetching"
	PhaseDone           Phase = "done"
	PhaseError          Phase = "error"
)

// ProgressFunc receives per-upstream progress.
type ProgressFunc func(server string, phase Phase, detail string)

// TokenSource resolves a non-interactive access token for an upstream.
type TokenSource interface {
	CachedAccessToken(ctx context.Context, serverURL string, opts *config.OAuthOptions) (string, error)
}

// Options bound one discovery pass.
type Options struct {
	// Exclude lists upstream names to skip.
	Exclude []string

	// Timeout bounds each upstream's connect+list cycle.
	Timeout time.Duration

	// Progress, when set, receives phase callbacks per upstream.
	Progress ProgressFunc
}

// ServerResult is the outcome for one upstream: a tool list or an error.
// Per-upstream failure never aborts the pass.
type ServerResult struct {
	Server string
	Tools  []transport.ToolDefinition
	Err    error
}

// Engine queries upstreams sequentially, bounding process and connection
// pressure.
type Engine struct {
	tokens TokenSource
}

// NewEngine creates a discovery engine. tokens may be nil when no upstream
// uses OAuth.
func NewEngine(tokens TokenSource) *Engine {
	return &Engine{tokens: tokens}
}

// Discover lists tools from every configured upstream in name order.
// Cancellation is honored between upstreams: the pass stops and returns what
// was collected so far along with the context error.
func (e *Engine) Discover(ctx context.Context, servers map[string]config.ServerConfig, opts Options) ([]ServerResult, error) {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []ServerResult
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if slices.Contains(opts.Exclude, name) {
			logger.Debugf("Skipping excluded server %s", name)
			continue
		}
		results = append(results, e.discoverOne(ctx, name, servers[name], opts))
	}
	return results, nil
}

func (e *Engine) discoverOne(ctx context.Context, name string, cfg config.ServerConfig, opts Options) ServerResult {
	report := func(phase Phase, detail string) {
		if opts.Progress != nil {
			opts.Progress(name, phase, detail)
		}
	}

	token, err := e.resolveToken(ctx, name, cfg, report)
	if err != nil {
		report(PhaseError, err.Error())
		return ServerResult{Server: name, Err: err}
	}

	report(PhaseConnecting, "")
	report(PhaseFetching, "")
	tools, err := transport.ListTools(ctx, name, cfg, transport.Options{
		AccessToken: token,
		Timeout:     opts.Timeout,
	})
	if err != nil {
		err = fmt.Errorf("failed to list tools from %s: %w", name, err)
		report(PhaseError, err.Error())
		return ServerResult{Server: name, Err: err}
	}

	report(PhaseDone, fmt.Sprintf("%d tools", len(tools)))
	return ServerResult{Server: name, Tools: tools}
}

// resolveToken produces the access token for an upstream according to its
// configured authorization type.
func (e *Engine) resolveToken(ctx context.Context, name string, cfg config.ServerConfig, report func(Phase, string)) (string, error) {
	switch cfg.AuthorizationType() {
	case config.AuthTypeNone:
		return "", nil
	case config.AuthTypeBearer:
		return cfg.Authorization.Token, nil
	case config.AuthTypeOAuth:
		report(PhaseAuthenticating, "")
		if e.tokens == nil {
			return "", fmt.Errorf("server %s requires OAuth but no token source is configured", name)
		}
		token, err := e.tokens.CachedAccessToken(ctx, cfg.URL, cfg.Authorization.OAuth)
		if errors.Is(err, oauth.ErrNoSession) {
			return "", fmt.Errorf("server %s requires authentication, run: please mcp auth %s", name, name)
		}
		if err != nil {
			return "", fmt.Errorf("failed to obtain token for %s: %w", name, err)
		}
		return token, nil
	default:
		return "", fmt.Errorf("server %s has unknown authorization type %q", name, cfg.Authorization.Type)
	}
}

// Tools flattens the successful results in pass order.
func Tools(results []ServerResult) []transport.ToolDefinition {
	var tools []transport.ToolDefinition
	for _, result := range results {
		tools = append(tools, result.Tools...)
	}
	return tools
}

// Errors collects the per-upstream failures keyed by server name.
func Errors(results []ServerResult) map[string]error {
	errs := map[string]error{}
	for _, result := range results {
		if result.Err != nil {
			errs[result.Server] = result.Err
		}
	}
	return errs
}
