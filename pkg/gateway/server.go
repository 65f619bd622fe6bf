// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pleasehq/please/pkg/index"
	"github.com/pleasehq/please/pkg/search"
	"github.com/pleasehq/please/pkg/transport"
	"github.com/pleasehq/please/pkg/versions"
)

// ServerName is the MCP identity the gateway advertises to hosts.
const ServerName = "please"

// Server exposes the merged index over MCP. Execution is deliberately not
// exposed here: hosts run tools through the CLI command returned by
// get_tool, so permission policy can key on tool-name patterns.
type Server struct {
	loader       *Loader
	orchestrator *search.Orchestrator
	mcpServer    *server.MCPServer
}

// NewServer wires the meta-tools onto a fresh MCP server.
func NewServer(loader *Loader, orchestrator *search.Orchestrator) *Server {
	s := &Server{
		loader:       loader,
		orchestrator: orchestrator,
		mcpServer: server.NewMCPServer(ServerName, versions.Version,
			server.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying server for transport binding.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks serving the stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("search_tools",
			mcp.WithDescription("Search the indexed tools from all configured MCP servers. Returns ranked matches; use get_tool for full schemas."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search query; plain keywords or a regular expression depending on mode")),
			mcp.WithString("mode", mcp.Description("Search mode"), mcp.Enum("regex", "bm25", "embedding", "hybrid")),
			mcp.WithNumber("top_k", mcp.Description("Maximum number of results")),
			mcp.WithNumber("threshold", mcp.Description("Minimum score in [0,1]")),
		),
		s.handleSearchTools,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_tools",
			mcp.WithDescription("List indexed tools with pagination."),
			mcp.WithNumber("limit", mcp.Description("Page size, default 50")),
			mcp.WithNumber("offset", mcp.Description("Zero-based start position")),
		),
		s.handleListTools,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_tool",
			mcp.WithDescription("Return a tool's full schema and the CLI command that executes it."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Fully-qualified tool name, as returned by search_tools")),
		),
		s.handleGetTool,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("tool_search_info",
			mcp.WithDescription("Return index metadata and the currently available search modes."),
		),
		s.handleToolSearchInfo,
	)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleSearchTools(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	idx, err := s.loader.Load()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := s.orchestrator.Search(ctx, search.Request{
		Query:     query,
		Mode:      search.Mode(req.GetString("mode", "")),
		TopK:      req.GetInt("top_k", 0),
		Threshold: req.GetFloat("threshold", 0),
	}, idx.Tools)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"tools":        resp.Tools,
		"total":        len(resp.Tools),
		"searchTimeMs": resp.SearchTimeMs,
	})
}

type toolSummary struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleListTools(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)
	offset := req.GetInt("offset", 0)
	if limit <= 0 || offset < 0 {
		return mcp.NewToolResultError("limit must be positive and offset non-negative"), nil
	}

	idx, err := s.loader.Load()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	page := []toolSummary{}
	for i := offset; i < len(idx.Tools) && len(page) < limit; i++ {
		tool := &idx.Tools[i].Tool
		page = append(page, toolSummary{Name: tool.Name, Title: tool.Title, Description: tool.Description})
	}

	return jsonResult(map[string]any{
		"tools":  page,
		"total":  len(idx.Tools),
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleGetTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	idx, err := s.loader.Load()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tool := findTool(idx, name)
	if tool == nil {
		return mcp.NewToolResultError(fmt.Sprintf("tool %q not found, use search_tools or list_tools to locate it", name)), nil
	}

	result := map[string]any{
		"name":        tool.Name,
		"description": tool.Description,
		"inputSchema": tool.InputSchema,
		"usage":       UsageTemplate(tool),
	}
	if tool.OutputSchema != nil {
		result["outputSchema"] = tool.OutputSchema
	}
	if tool.Title != "" {
		result["title"] = tool.Title
	}
	if serverName, originalName, ok := tool.Provenance(); ok {
		result["server"] = serverName
		result["originalName"] = originalName
	}
	return jsonResult(result)
}

func (s *Server) handleToolSearchInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idx, err := s.loader.Load()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	modes := []string{string(search.ModeRegex), string(search.ModeBM25)}
	if idx.HasEmbeddings {
		modes = append(modes, string(search.ModeEmbedding), string(search.ModeHybrid))
	}

	info := map[string]any{
		"version":        idx.Version,
		"totalTools":     idx.TotalTools,
		"hasEmbeddings":  idx.HasEmbeddings,
		"createdAt":      idx.CreatedAt,
		"updatedAt":      idx.UpdatedAt,
		"availableModes": modes,
		"sources":        s.loader.Sources(),
	}
	if idx.HasEmbeddings {
		info["embeddingModel"] = idx.EmbeddingModel
		info["embeddingDimensions"] = idx.EmbeddingDimensions
	}
	return jsonResult(info)
}

func findTool(idx *index.Index, name string) *transport.ToolDefinition {
	for i := range idx.Tools {
		if idx.Tools[i].Tool.Name == name {
			return &idx.Tools[i].Tool
		}
	}
	return nil
}
