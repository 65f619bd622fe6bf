// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/pleasehq/please/pkg/config"
	"github.com/pleasehq/please/pkg/discovery"
	"github.com/pleasehq/please/pkg/embeddings"
	"github.com/pleasehq/please/pkg/index"
	"github.com/pleasehq/please/pkg/logger"
	"github.com/pleasehq/please/pkg/versions"
)

var indexCmd = &cobra.Command{
	Use:   "index [servers...]",
	Short: "Build the searchable tool index",
	Long: `Connect to the configured MCP servers, collect their tool lists and build
the searchable index for the current scope. With server names as arguments,
only those servers are indexed.

The index is skipped when it is already up to date; --force always rebuilds.`,
	RunE: indexCmdFunc,
}

var (
	indexOutput       string
	indexProvider     string
	indexModel        string
	indexDtype        string
	indexNoEmbeddings bool
	indexForce        bool
	indexTimeout      time.Duration
	indexExclude      []string
	indexScope        string
)

func init() {
	indexCmd.Flags().StringVar(&indexOutput, "output", "", "Write the index to an explicit path instead of the scope default")
	indexCmd.Flags().StringVar(&indexProvider, "provider", "", "Embedding provider location (local, openai, voyage) or a full location:model tag")
	indexCmd.Flags().StringVar(&indexModel, "model", "", "Embedding model name within the provider")
	indexCmd.Flags().StringVar(&indexDtype, "dtype", "", "Quantization hint for local models (fp32, fp16, q8, q4, q4f16)")
	indexCmd.Flags().BoolVar(&indexNoEmbeddings, "no-embeddings", false, "Build a keyword-only index without embeddings")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "Rebuild even when the index is up to date")
	indexCmd.Flags().DurationVar(&indexTimeout, "timeout", 0, "Per-server connect timeout (default 30s)")
	indexCmd.Flags().StringSliceVar(&indexExclude, "exclude", nil, "Comma-separated server names to skip")
	indexCmd.Flags().StringVar(&indexScope, "scope", string(config.IndexScopeProject), "Index scope (project or user)")
}

// buildParams collects everything one index build depends on.
type buildParams struct {
	scope       config.IndexScope
	output      string // empty means the scope default path
	providerTag string // empty means no embeddings
	dtype       string
	exclude     []string
	timeout     time.Duration
	only        []string // restrict discovery to these servers
}

func indexCmdFunc(cmd *cobra.Command, args []string) error {
	scope, err := parseIndexScope(indexScope, false)
	if err != nil {
		return err
	}

	resolver, err := config.NewResolver()
	if err != nil {
		return err
	}

	params := buildParams{
		scope:   scope,
		output:  indexOutput,
		dtype:   indexDtype,
		exclude: indexExclude,
		timeout: indexTimeout,
		only:    args,
	}
	if !indexNoEmbeddings {
		params.providerTag = providerTag(indexProvider, indexModel)
	}

	if !indexForce {
		check := index.CheckRegeneration(index.NewStore(indexPath(resolver, params)), buildMetadata(resolver, params))
		if !check.NeedsRebuild {
			fmt.Println("Index is up to date, use --force to rebuild")
			return nil
		}
		for _, reason := range check.Reasons {
			fmt.Printf("  %s\n", reason)
		}
	}

	return runIndexBuild(cmd.Context(), resolver, params)
}

func indexPath(resolver *config.Resolver, params buildParams) string {
	if params.output != "" {
		return params.output
	}
	return resolver.IndexPath(params.scope)
}

// buildMetadata captures the inputs the regeneration detector compares.
func buildMetadata(resolver *config.Resolver, params buildParams) index.BuildMetadata {
	mode := "hybrid"
	provider := params.providerTag
	if provider == "" {
		mode = "bm25"
	}
	return index.BuildMetadata{
		CLIVersion: versions.GetVersionInfo().Version,
		CLIArgs: index.CLIArgs{
			Mode:     mode,
			Provider: provider,
			Dtype:    params.dtype,
			Exclude:  params.exclude,
			Scope:    string(params.scope),
		},
		ConfigFingerprints: resolver.Fingerprints(),
	}
}

// runIndexBuild performs discovery, embedding and persistence for one scope.
// Shared with the serve command's auto-rebuild.
func runIndexBuild(ctx context.Context, resolver *config.Resolver, params buildParams) error {
	servers := resolver.ResolveServers(params.scope)
	if len(params.only) > 0 {
		filtered := map[string]config.ServerConfig{}
		for _, name := range params.only {
			cfg, ok := servers[name]
			if !ok {
				return fmt.Errorf("server %q is not configured in %s scope", name, params.scope)
			}
			filtered[name] = cfg
		}
		servers = filtered
	}
	if len(servers) == 0 {
		return fmt.Errorf("no MCP servers configured for %s scope, run: please mcp add <name>", params.scope)
	}

	tokens, err := newTokenManager()
	if err != nil {
		return err
	}

	fmt.Printf("Discovering tools from %d servers...\n", len(servers))
	results, err := discovery.NewEngine(tokens).Discover(ctx, servers, discovery.Options{
		Exclude: params.exclude,
		Timeout: params.timeout,
		Progress: func(server string, phase discovery.Phase, detail string) {
			if detail == "" {
				fmt.Printf("  %s: %s\n", server, phase)
				return
			}
			fmt.Printf("  %s: %s (%s)\n", server, phase, detail)
		},
	})
	if err != nil {
		return err
	}

	errs := discovery.Errors(results)
	for _, name := range sortedKeys(errs) {
		logger.Warnf("Server %s failed: %v", name, errs[name])
	}

	tools := discovery.Tools(results)
	if len(tools) == 0 && len(errs) > 0 {
		return fmt.Errorf("no tools discovered, %d of %d servers failed", len(errs), len(servers))
	}

	opts := index.BuildOptions{
		Metadata: metadataPtr(buildMetadata(resolver, params)),
		Progress: func(done, total int) {
			fmt.Printf("  embedded %d/%d tools\n", done, total)
		},
	}
	if params.providerTag != "" {
		provider, err := buildProvider(params.providerTag, params.dtype)
		if err != nil {
			return err
		}
		if err := provider.Initialize(ctx); err != nil {
			return fmt.Errorf("embedding provider unavailable: %w (use --no-embeddings for a keyword-only index)", err)
		}
		defer disposeProvider(provider)
		opts.Embedder = provider
		opts.EmbeddingModel = params.providerTag
	}

	idx, err := index.Build(ctx, tools, opts)
	if err != nil {
		return err
	}

	path := indexPath(resolver, params)
	if err := index.NewStore(path).Save(idx); err != nil {
		return err
	}

	fmt.Printf("Indexed %d tools from %d servers -> %s\n", idx.TotalTools, len(results)-len(errs), path)
	return nil
}

func metadataPtr(meta index.BuildMetadata) *index.BuildMetadata {
	return &meta
}

func disposeProvider(provider embeddings.Provider) {
	if err := provider.Dispose(); err != nil {
		logger.Debugf("Failed to dispose embedding provider: %v", err)
	}
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
