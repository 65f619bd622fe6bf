// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/pleasehq/please/pkg/config"
	"github.com/pleasehq/please/pkg/embeddings"
	"github.com/pleasehq/please/pkg/gateway"
	"github.com/pleasehq/please/pkg/index"
	"github.com/pleasehq/please/pkg/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed tools",
	Long: `Search the tool index by keyword (bm25), regular expression (regex),
semantic similarity (embedding) or a fusion of keyword and semantic ranking
(hybrid). Embedding and hybrid modes require an index built with embeddings.`,
	Args: cobra.ExactArgs(1),
	RunE: searchCmdFunc,
}

var (
	searchMode      string
	searchTopK      int
	searchThreshold float64
	searchIndexPath string
	searchFormat    string
	searchProvider  string
	searchScope     string
)

func init() {
	searchCmd.Flags().StringVar(&searchMode, "mode", "", "Search mode (regex, bm25, embedding, hybrid)")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "Maximum number of results (default 10)")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "Minimum score in [0,1]")
	searchCmd.Flags().StringVar(&searchIndexPath, "index", "", "Explicit index file instead of the scope default")
	searchCmd.Flags().StringVar(&searchFormat, "format", FormatTable, "Output format (table, json or minimal)")
	searchCmd.Flags().StringVar(&searchProvider, "provider", "", "Override the embedding provider recorded in the index")
	searchCmd.Flags().StringVar(&searchScope, "scope", string(config.IndexScopeAll), "Index scope (project, user or all)")
}

func searchCmdFunc(cmd *cobra.Command, args []string) error {
	loader, err := newLoader(searchIndexPath, searchScope)
	if err != nil {
		return err
	}
	idx, err := loader.Load()
	if err != nil {
		return err
	}

	provider, err := searchProviderFor(idx)
	if err != nil {
		return err
	}
	orchestrator := search.NewOrchestrator(&idx.BM25Stats, provider)
	defer func() { _ = orchestrator.Dispose() }()

	resp, err := orchestrator.Search(cmd.Context(), search.Request{
		Query:     args[0],
		Mode:      search.Mode(searchMode),
		TopK:      searchTopK,
		Threshold: searchThreshold,
	}, idx.Tools)
	if err != nil {
		return err
	}

	switch searchFormat {
	case FormatJSON:
		return printJSON(resp)
	case FormatMinimal:
		for _, result := range resp.Tools {
			fmt.Printf("%s\t%.3f\n", result.Name, result.Score)
		}
		return nil
	case FormatTable:
		printSearchTable(resp)
		return nil
	default:
		return fmt.Errorf("invalid format %q, must be table, json or minimal", searchFormat)
	}
}

// newLoader builds the index loader for an explicit path or a scope.
func newLoader(explicitPath, scopeFlag string) (*gateway.Loader, error) {
	if explicitPath != "" {
		return gateway.NewLoaderAt(explicitPath), nil
	}
	scope, err := parseIndexScope(scopeFlag, true)
	if err != nil {
		return nil, err
	}
	resolver, err := config.NewResolver()
	if err != nil {
		return nil, err
	}
	return gateway.NewLoader(resolver, scope), nil
}

// searchProviderFor constructs the embedding provider matching the index,
// honoring a --provider override. A keyword-only index yields nil.
func searchProviderFor(idx *index.Index) (embeddings.Provider, error) {
	tag := idx.EmbeddingModel
	if searchProvider != "" {
		tag = providerTag(searchProvider, "")
	}
	if tag == "" || !idx.HasEmbeddings {
		return nil, nil
	}
	return buildProvider(tag, "")
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printSearchTable(resp *search.Response) {
	if len(resp.Tools) == 0 {
		fmt.Printf("No tools found for query: %s\n", resp.Query)
		return
	}
	fmt.Printf("Found %d tools (%s, %d indexed, %dms)\n",
		len(resp.Tools), resp.Mode, resp.TotalIndexed, resp.SearchTimeMs)

	table := tablewriter.NewWriter(os.Stdout)
	table.Options(
		tablewriter.WithHeader([]string{"Name", "Score", "Match", "Description"}),
		tablewriter.WithAlignment(tw.MakeAlign(4, tw.AlignLeft)),
	)
	for _, result := range resp.Tools {
		if err := table.Append([]string{
			result.Name,
			fmt.Sprintf("%.3f", result.Score),
			string(result.MatchType),
			truncateString(result.Description, 60),
		}); err != nil {
			fmt.Printf("failed to render results: %v\n", err)
			return
		}
	}
	if err := table.Render(); err != nil {
		fmt.Printf("failed to render results: %v\n", err)
	}
}
