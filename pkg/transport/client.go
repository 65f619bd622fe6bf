// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"os"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pleasehq/please/pkg/config"
	"github.com/pleasehq/please/pkg/logger"
	"github.com/pleasehq/please/pkg/versions"
)

// DefaultConnectTimeout bounds a single connect+initialize attempt.
const DefaultConnectTimeout = 30 * time.Second

// Options configures a single-shot operation against one upstream.
type Options struct {
	// AccessToken is injected as a bearer header on HTTP/SSE transports.
	AccessToken string

	// Timeout bounds the connect+initialize handshake. Zero means
	// DefaultConnectTimeout.
	Timeout time.Duration
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultConnectTimeout
	}
	return o.Timeout
}

// buildEnv merges the caller's environment with the config overlay,
// filtering out entries with empty keys.
func buildEnv(overlay map[string]string) []string {
	env := os.Environ()
	for k, v := range overlay {
		if k == "" {
			continue
		}
		env = append(env, k+"="+v)
	}
	return env
}

// connect creates and initializes an MCP client for one upstream. The
// caller owns closing the returned client.
func connect(ctx context.Context, serverName string, cfg config.ServerConfig, opts Options) (*mcpclient.Client, error) {
	var c *mcpclient.Client
	var err error

	switch cfg.EffectiveTransport() {
	case config.TransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("server %q: command is required for stdio transport", serverName)
		}
		// NewStdioMCPClient spawns the subprocess and starts the transport.
		c, err = mcpclient.NewStdioMCPClient(cfg.Command, buildEnv(cfg.Env), cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to create stdio client for %q: %w", serverName, err)
		}

	case config.TransportHTTP:
		httpOpts := []mcptransport.StreamableHTTPCOption{
			mcptransport.WithHTTPTimeout(opts.timeout()),
		}
		if opts.AccessToken != "" {
			httpOpts = append(httpOpts, mcptransport.WithHTTPHeaders(map[string]string{
				"Authorization": "Bearer " + opts.AccessToken,
			}))
		}
		c, err = mcpclient.NewStreamableHttpClient(cfg.URL, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create streamable-http client for %q: %w", serverName, err)
		}
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start streamable-http client for %q: %w", serverName, err)
		}

	case config.TransportSSE:
		var sseOpts []mcptransport.ClientOption
		if opts.AccessToken != "" {
			sseOpts = append(sseOpts, mcptransport.WithHeaders(map[string]string{
				"Authorization": "Bearer " + opts.AccessToken,
			}))
		}
		c, err = mcpclient.NewSSEMCPClient(cfg.URL, sseOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSE client for %q: %w", serverName, err)
		}
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start SSE client for %q: %w", serverName, err)
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTransport, cfg.EffectiveTransport())
	}

	if _, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    "please",
				Version: versions.GetVersionInfo().Version,
			},
		},
	}); err != nil {
		closeClient(c)
		return nil, fmt.Errorf("failed to initialize MCP session with %q: %w", serverName, err)
	}

	return c, nil
}

// closeClient closes a client, swallowing close errors.
func closeClient(c *mcpclient.Client) {
	if err := c.Close(); err != nil {
		logger.Debugf("Failed to close MCP client: %v", err)
	}
}

// ListTools performs a single connect → tools/list → close cycle and returns
// each tool adorned with provenance: the visible name becomes
// <serverName>__<originalName> and the original name moves into metadata.
func ListTools(ctx context.Context, serverName string, cfg config.ServerConfig, opts Options) ([]ToolDefinition, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	c, err := connect(ctx, serverName, cfg, opts)
	if err != nil {
		return nil, err
	}
	defer closeClient(c)

	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools from %q: %w", serverName, err)
	}

	tools := make([]ToolDefinition, 0, len(result.Tools))
	for _, tool := range result.Tools {
		tools = append(tools, adornTool(serverName, tool))
	}
	logger.Debugf("Server %s returned %d tools", serverName, len(tools))
	return tools, nil
}

// adornTool converts an mcp-go tool into the federated form.
func adornTool(serverName string, tool mcp.Tool) ToolDefinition {
	inputSchema := map[string]any{}
	if tool.InputSchema.Type != "" {
		inputSchema["type"] = tool.InputSchema.Type
	}
	if tool.InputSchema.Properties != nil {
		inputSchema["properties"] = tool.InputSchema.Properties
	}
	if len(tool.InputSchema.Required) > 0 {
		inputSchema["required"] = tool.InputSchema.Required
	}

	def := ToolDefinition{
		Name:        PrefixedName(serverName, tool.Name),
		Description: tool.Description,
		InputSchema: inputSchema,
		Metadata: map[string]any{
			MetaServerKey:       serverName,
			MetaOriginalNameKey: tool.Name,
		},
	}
	if tool.OutputSchema.Type != "" {
		outputSchema := map[string]any{"type": tool.OutputSchema.Type}
		if tool.OutputSchema.Properties != nil {
			outputSchema["properties"] = tool.OutputSchema.Properties
		}
		if len(tool.OutputSchema.Required) > 0 {
			outputSchema["required"] = tool.OutputSchema.Required
		}
		def.OutputSchema = outputSchema
	}
	if tool.Annotations.Title != "" {
		def.Title = tool.Annotations.Title
	}
	return def
}

// CallTool performs a single connect → tools/call → close cycle using the
// original (un-prefixed) tool name.
func CallTool(
	ctx context.Context,
	serverName, toolName string,
	arguments map[string]any,
	cfg config.ServerConfig,
	opts Options,
) (*ToolCallResult, error) {
	connectCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	c, err := connect(connectCtx, serverName, cfg, opts)
	if err != nil {
		return nil, err
	}
	defer closeClient(c)

	result, err := c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: arguments,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tool call %q failed on %q: %w", toolName, serverName, err)
	}

	converted := &ToolCallResult{
		Content:           make([]Content, 0, len(result.Content)),
		StructuredContent: result.StructuredContent,
		IsError:           result.IsError,
	}
	for _, content := range result.Content {
		converted.Content = append(converted.Content, convertContent(content))
	}
	return converted, nil
}

// convertContent maps mcp-go content values onto the wire-stable Content type.
func convertContent(content mcp.Content) Content {
	if textContent, ok := mcp.AsTextContent(content); ok {
		return Content{Type: "text", Text: textContent.Text}
	}
	if imageContent, ok := mcp.AsImageContent(content); ok {
		return Content{Type: "image", Data: imageContent.Data, MimeType: imageContent.MIMEType}
	}
	if audioContent, ok := mcp.AsAudioContent(content); ok {
		return Content{Type: "audio", Data: audioContent.Data, MimeType: audioContent.MIMEType}
	}
	logger.Warnf("Encountered unknown content type %T, marking as unknown content", content)
	return Content{Type: "unknown"}
}
