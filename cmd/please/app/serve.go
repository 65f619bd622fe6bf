// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/pleasehq/please/pkg/config"
	"github.com/pleasehq/please/pkg/gateway"
	"github.com/pleasehq/please/pkg/index"
	"github.com/pleasehq/please/pkg/logger"
	"github.com/pleasehq/please/pkg/search"
)

// DefaultServePort is the HTTP transport's default listen port.
const DefaultServePort = 4483

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway MCP server",
	Long: `Serve the meta-tools (search_tools, list_tools, get_tool, tool_search_info)
over MCP. The stdio transport is meant for IDE configs; the HTTP transport
exposes a streamable endpoint for remote hosts.

A stale index is rebuilt automatically before serving.`,
	RunE: serveCmdFunc,
}

var (
	serveTransport string
	servePort      int
	serveIndexPath string
	serveMode      string
	serveProvider  string
	serveDtype     string
	serveScope     string
)

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", string(config.TransportStdio), "Gateway transport (stdio or http)")
	serveCmd.Flags().IntVar(&servePort, "port", DefaultServePort, "Listen port for the http transport")
	serveCmd.Flags().StringVar(&serveIndexPath, "index", "", "Explicit index file instead of the scope default")
	serveCmd.Flags().StringVar(&serveMode, "mode", "", "Default search mode for search_tools")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "Override the embedding provider recorded in the index")
	serveCmd.Flags().StringVar(&serveDtype, "dtype", "", "Quantization hint for local embedding models")
	serveCmd.Flags().StringVar(&serveScope, "scope", string(config.IndexScopeAll), "Index scope (project, user or all)")
}

func serveCmdFunc(cmd *cobra.Command, _ []string) error {
	loader, err := newLoader(serveIndexPath, serveScope)
	if err != nil {
		return err
	}

	if serveIndexPath == "" {
		rebuilt, err := autoRebuild(cmd.Context())
		if err != nil {
			return err
		}
		if rebuilt {
			loader.Invalidate()
		}
	}

	idx, err := loader.Load()
	if err != nil {
		return err
	}

	tag := idx.EmbeddingModel
	if serveProvider != "" {
		tag = providerTag(serveProvider, "")
	}
	var opts []search.OrchestratorOption
	if serveMode != "" {
		opts = append(opts, search.WithDefaultMode(search.Mode(serveMode)))
	}

	var orchestrator *search.Orchestrator
	if idx.HasEmbeddings && tag != "" {
		provider, err := buildProvider(tag, serveDtype)
		if err != nil {
			return err
		}
		orchestrator = search.NewOrchestrator(&idx.BM25Stats, provider, opts...)
	} else {
		orchestrator = search.NewOrchestrator(&idx.BM25Stats, nil, opts...)
	}
	defer func() { _ = orchestrator.Dispose() }()

	srv := gateway.NewServer(loader, orchestrator)

	switch serveTransport {
	case string(config.TransportStdio):
		logger.Infof("Serving %d tools over stdio", idx.TotalTools)
		return srv.ServeStdio()
	case string(config.TransportHTTP):
		addr := fmt.Sprintf(":%d", servePort)
		logger.Infof("Serving %d tools on %s/mcp", idx.TotalTools, addr)
		return mcpserver.NewStreamableHTTPServer(srv.MCPServer()).Start(addr)
	default:
		return fmt.Errorf("invalid transport %q, must be stdio or http", serveTransport)
	}
}

// autoRebuild checks each scope the serve flags cover and rebuilds the ones
// the regeneration detector reports stale. Scopes with no configured servers
// and no existing index are skipped. Reports whether any index was rewritten
// so the caller can drop cached views.
func autoRebuild(ctx context.Context) (bool, error) {
	resolver, err := config.NewResolver()
	if err != nil {
		return false, err
	}

	scopes := []config.IndexScope{config.IndexScopeUser, config.IndexScopeProject}
	if serveScope != string(config.IndexScopeAll) {
		scope, err := parseIndexScope(serveScope, false)
		if err != nil {
			return false, err
		}
		scopes = []config.IndexScope{scope}
	}

	rebuilt := false
	for _, scope := range scopes {
		params := buildParams{scope: scope, dtype: serveDtype}
		if serveProvider != "" {
			params.providerTag = providerTag(serveProvider, "")
		} else {
			params.providerTag = defaultProviderForScope(resolver, scope)
		}

		store := index.NewStore(resolver.IndexPath(scope))
		if len(resolver.ResolveServers(scope)) == 0 && !store.Exists() {
			continue
		}

		check := index.CheckRegeneration(store, buildMetadata(resolver, params))
		if !check.NeedsRebuild {
			continue
		}
		logger.Infof("Rebuilding stale %s index: %v", scope, check.Reasons)
		if err := runIndexBuild(ctx, resolver, params); err != nil {
			return rebuilt, fmt.Errorf("failed to rebuild %s index: %w", scope, err)
		}
		rebuilt = true
	}
	return rebuilt, nil
}

// defaultProviderForScope carries the existing index's embedding choice
// forward so serving does not flip a keyword-only index to embeddings.
func defaultProviderForScope(resolver *config.Resolver, scope config.IndexScope) string {
	meta, err := index.NewStore(resolver.IndexPath(scope)).GetMetadata()
	if err != nil || meta == nil {
		return ""
	}
	return meta.EmbeddingModel
}
