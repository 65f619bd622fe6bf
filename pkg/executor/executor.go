// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package executor resolves a prefixed tool name against the index and
// dispatches the call to its upstream server.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pleasehq/please/pkg/auth/oauth"
	"github.com/pleasehq/please/pkg/config"
	"github.com/pleasehq/please/pkg/gateway"
	"github.com/pleasehq/please/pkg/transport"
)

// FailureCode discriminates the executor's typed failures.
type FailureCode string

const (
	// ToolNotFound means the name is not in the index.
	ToolNotFound FailureCode = "TOOL_NOT_FOUND"
	// MetadataMissing means the indexed tool carries no provenance.
	MetadataMissing FailureCode = "METADATA_MISSING"
	// ServerNotConfigured means the provenance names an unknown upstream.
	ServerNotConfigured FailureCode = "SERVER_NOT_CONFIGURED"
	// AuthRequired means the upstream needs OAuth but no session is usable.
	AuthRequired FailureCode = "AUTH_REQUIRED"
	// ExecutionFailed means the upstream call itself failed.
	ExecutionFailed FailureCode = "EXECUTION_FAILED"
)

// Error is a typed execution failure with an optional remediation hint.
type Error struct {
	Code    FailureCode
	Message string
	Hint    string
}

func (e *Error) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Hint)
}

func failure(code FailureCode, hint, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Hint: hint}
}

// TokenSource resolves a non-interactive access token for an upstream.
type TokenSource interface {
	CachedAccessToken(ctx context.Context, serverURL string, opts *config.OAuthOptions) (string, error)
}

// Executor looks up tools in the loaded index and calls their upstreams.
type Executor struct {
	loader  *gateway.Loader
	servers map[string]config.ServerConfig
	tokens  TokenSource
	timeout time.Duration
}

// New creates an executor over a loaded index and the merged upstream
// configuration. tokens may be nil when no upstream uses OAuth.
func New(loader *gateway.Loader, servers map[string]config.ServerConfig, tokens TokenSource) *Executor {
	return &Executor{loader: loader, servers: servers, tokens: tokens}
}

// SetTimeout bounds each upstream connect+call cycle.
func (e *Executor) SetTimeout(timeout time.Duration) {
	e.timeout = timeout
}

// Execute runs one tool call. The returned result preserves the upstream's
// isError flag; typed failures are returned as *Error.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (*transport.ToolCallResult, error) {
	idx, err := e.loader.Load()
	if err != nil {
		return nil, failure(ExecutionFailed, "run: please index", "failed to load index: %v", err)
	}

	var tool *transport.ToolDefinition
	for i := range idx.Tools {
		if idx.Tools[i].Tool.Name == name {
			tool = &idx.Tools[i].Tool
			break
		}
	}
	if tool == nil {
		return nil, failure(ToolNotFound, "run: please search <query>", "tool %q is not in the index", name)
	}

	serverName, originalName, ok := tool.Provenance()
	if !ok {
		return nil, failure(MetadataMissing, "run: please index",
			"tool %q has no provenance metadata, the index may predate this format", name)
	}

	serverCfg, ok := e.servers[serverName]
	if !ok {
		return nil, failure(ServerNotConfigured, fmt.Sprintf("run: please mcp add %s", serverName),
			"tool %q belongs to server %q which is not configured", name, serverName)
	}

	token, err := e.resolveToken(ctx, serverName, &serverCfg)
	if err != nil {
		return nil, err
	}

	result, err := transport.CallTool(ctx, serverName, originalName, args, serverCfg, transport.Options{
		AccessToken: token,
		Timeout:     e.timeout,
	})
	if err != nil {
		return nil, failure(ExecutionFailed, "", "call to %s failed: %v", name, err)
	}
	return result, nil
}

func (e *Executor) resolveToken(ctx context.Context, serverName string, cfg *config.ServerConfig) (string, error) {
	switch cfg.AuthorizationType() {
	case config.AuthTypeNone:
		return "", nil
	case config.AuthTypeBearer:
		return cfg.Authorization.Token, nil
	case config.AuthTypeOAuth:
		if e.tokens == nil {
			return "", failure(AuthRequired, fmt.Sprintf("run: please mcp auth %s", serverName),
				"server %q requires OAuth but no token source is configured", serverName)
		}
		token, err := e.tokens.CachedAccessToken(ctx, cfg.URL, cfg.Authorization.OAuth)
		if errors.Is(err, oauth.ErrNoSession) {
			return "", failure(AuthRequired, fmt.Sprintf("run: please mcp auth %s", serverName),
				"no usable OAuth session for server %q", serverName)
		}
		if err != nil {
			return "", failure(ExecutionFailed, "", "failed to obtain token for %s: %v", serverName, err)
		}
		return token, nil
	default:
		return "", failure(ServerNotConfigured, "",
			"server %q has unknown authorization type %q", serverName, cfg.Authorization.Type)
	}
}
