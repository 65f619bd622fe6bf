// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pleasehq/please/pkg/config"
)

func newMCPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage upstream MCP server configurations",
		Long: `Manage the upstream MCP server entries across the three configuration
scopes: user (~/.please/mcp.json), project (.please/mcp.json) and local
(.please/mcp.local.json, gitignored). Later scopes win on name collision.`,
	}
	cmd.AddCommand(newMCPAddCommand())
	cmd.AddCommand(newMCPRemoveCommand())
	cmd.AddCommand(newMCPListCommand())
	cmd.AddCommand(newMCPGetCommand())
	cmd.AddCommand(newMCPAuthCommand())
	return cmd
}

func newMCPAddCommand() *cobra.Command {
	var (
		scopeFlag   string
		url         string
		command     string
		cmdArgs     []string
		env         []string
		transport   string
		bearerToken string
		useOAuth    bool
		oauthScopes []string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or replace an upstream server entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseConfigScope(scopeFlag)
			if err != nil {
				return err
			}

			server := config.ServerConfig{
				Command:   command,
				Args:      cmdArgs,
				URL:       url,
				Transport: config.TransportType(transport),
			}
			if len(env) > 0 {
				server.Env = map[string]string{}
				for _, pair := range env {
					key, value, ok := strings.Cut(pair, "=")
					if !ok {
						return fmt.Errorf("invalid --env value %q, expected KEY=VALUE", pair)
					}
					server.Env[key] = value
				}
			}
			switch {
			case useOAuth && bearerToken != "":
				return fmt.Errorf("--oauth and --bearer-token are mutually exclusive")
			case useOAuth:
				server.Authorization = &config.Authorization{Type: config.AuthTypeOAuth}
				if len(oauthScopes) > 0 {
					server.Authorization.OAuth = &config.OAuthOptions{Scopes: oauthScopes}
				}
			case bearerToken != "":
				server.Authorization = &config.Authorization{Type: config.AuthTypeBearer, Token: bearerToken}
			}

			name := args[0]
			if err := server.Validate(name); err != nil {
				return err
			}

			resolver, err := config.NewResolver()
			if err != nil {
				return err
			}
			err = config.NewStore(resolver, scope).Update(cmd.Context(), func(cfg *config.MCPConfig) {
				cfg.MCPServers[name] = server
			})
			if err != nil {
				return err
			}

			fmt.Printf("Added server %s to %s scope\n", name, scope)
			fmt.Println("Run `please index` to make its tools searchable")
			return nil
		},
	}

	cmd.Flags().StringVar(&scopeFlag, "scope", string(config.ScopeLocal), "Config scope (local, project or user)")
	cmd.Flags().StringVar(&url, "url", "", "Server URL for http/sse transports")
	cmd.Flags().StringVar(&command, "command", "", "Command to spawn for the stdio transport")
	cmd.Flags().StringArrayVar(&cmdArgs, "arg", nil, "Argument for the stdio command (repeatable)")
	cmd.Flags().StringArrayVar(&env, "env", nil, "KEY=VALUE environment overlay for the stdio command (repeatable)")
	cmd.Flags().StringVar(&transport, "transport", "", "Transport override (stdio, http or sse)")
	cmd.Flags().StringVar(&bearerToken, "bearer-token", "", "Static bearer token for the server")
	cmd.Flags().BoolVar(&useOAuth, "oauth", false, "Authenticate with the OAuth 2.1 authorization-code flow")
	cmd.Flags().StringArrayVar(&oauthScopes, "oauth-scope", nil, "OAuth scope to request (repeatable)")

	return cmd
}

func newMCPRemoveCommand() *cobra.Command {
	var scopeFlag string

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an upstream server entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseConfigScope(scopeFlag)
			if err != nil {
				return err
			}
			resolver, err := config.NewResolver()
			if err != nil {
				return err
			}

			name := args[0]
			found := false
			err = config.NewStore(resolver, scope).Update(cmd.Context(), func(cfg *config.MCPConfig) {
				_, found = cfg.MCPServers[name]
				delete(cfg.MCPServers, name)
			})
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("server %q is not configured in %s scope", name, scope)
			}
			fmt.Printf("Removed server %s from %s scope\n", name, scope)
			return nil
		},
	}

	cmd.Flags().StringVar(&scopeFlag, "scope", string(config.ScopeLocal), "Config scope (local, project or user)")
	return cmd
}

func newMCPListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured upstream servers across all scopes",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			resolver, err := config.NewResolver()
			if err != nil {
				return err
			}

			type row struct {
				name, scope string
				server      config.ServerConfig
			}
			var rows []row
			// Reverse merge order so the winning scope is listed per name.
			seen := map[string]bool{}
			for _, scope := range []config.Scope{config.ScopeLocal, config.ScopeProject, config.ScopeUser} {
				for name, server := range resolver.Load(scope).MCPServers {
					if seen[name] {
						continue
					}
					seen[name] = true
					rows = append(rows, row{name: name, scope: string(scope), server: server})
				}
			}
			if len(rows) == 0 {
				fmt.Println("No MCP servers configured. Add one with `please mcp add`.")
				return nil
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "NAME\tTRANSPORT\tTARGET\tAUTH\tSCOPE")
			for _, r := range rows {
				target := r.server.URL
				if target == "" {
					target = r.server.Command
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.name,
					r.server.EffectiveTransport(),
					truncateString(target, 50),
					r.server.AuthorizationType(),
					r.scope,
				)
			}
			return w.Flush()
		},
	}
}

func newMCPGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show one upstream server's effective configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			resolver, err := config.NewResolver()
			if err != nil {
				return err
			}

			name := args[0]
			// Highest-precedence scope wins, matching federation merge order.
			for _, scope := range []config.Scope{config.ScopeLocal, config.ScopeProject, config.ScopeUser} {
				if server, ok := resolver.Load(scope).MCPServers[name]; ok {
					fmt.Printf("# %s (%s scope, %s)\n", name, scope, resolver.Path(scope))
					return printJSON(server)
				}
			}
			return fmt.Errorf("server %q is not configured in any scope", name)
		},
	}
}

func newMCPAuthCommand() *cobra.Command {
	var (
		skipBrowser bool
		revoke      bool
	)

	cmd := &cobra.Command{
		Use:   "auth <name>",
		Short: "Authenticate against an OAuth-protected upstream server",
		Long: `Run the OAuth 2.1 authorization-code flow for a configured upstream and
cache the session for later index and call operations. With --revoke, the
cached session is cleared instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := config.NewResolver()
			if err != nil {
				return err
			}

			name := args[0]
			server, ok := resolver.ResolveServers(config.IndexScopeProject)[name]
			if !ok {
				return fmt.Errorf("server %q is not configured, run: please mcp add %s", name, name)
			}
			if server.AuthorizationType() != config.AuthTypeOAuth {
				return fmt.Errorf("server %q does not use OAuth (authorization type %s)", name, server.AuthorizationType())
			}

			manager, err := newTokenManager()
			if err != nil {
				return err
			}

			if revoke {
				if err := manager.Revoke(server.URL); err != nil {
					return err
				}
				fmt.Printf("Revoked OAuth session for %s\n", name)
				return nil
			}

			manager.SetSkipBrowser(skipBrowser)
			sess, err := manager.Authorize(cmd.Context(), name, server.URL, server.Authorization.OAuth)
			if err != nil {
				return err
			}

			if sess.ExpiresAt != nil {
				fmt.Printf("Authenticated %s, token expires %s\n", name, sess.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			} else {
				fmt.Printf("Authenticated %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipBrowser, "skip-browser", false, "Print the authorization URL instead of opening a browser")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "Clear the cached OAuth session")
	return cmd
}
