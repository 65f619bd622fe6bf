// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the please command-line
// application.
package app

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pleasehq/please/pkg/logger"
	"github.com/pleasehq/please/pkg/transport"
)

var rootCmd = &cobra.Command{
	Use:               "please",
	DisableAutoGenTag: true,
	Short:             "please is an aggregation gateway for MCP servers",
	Long: `please federates the tools of every configured MCP (Model Context Protocol)
server behind a single gateway. Tools are indexed offline and exposed to MCP
hosts through a small set of meta-tools (search_tools, list_tools, get_tool,
tool_search_info), so hosts load four tool schemas instead of hundreds.

Execution happens through the CLI: "please call <server>__<tool>" connects to
the originating upstream and runs the tool, which lets hosts gate execution
with per-tool-name permission policy.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the please CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newMCPCommand())
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// RewriteDirectDispatch turns `please <server>__<tool> ...` into
// `please call <server>__<tool> ...`. Only a first argument carrying the
// federation separator is rewritten, so subcommands and flags pass through.
func RewriteDirectDispatch(args []string) []string {
	if len(args) < 2 {
		return args
	}
	first := args[1]
	if strings.HasPrefix(first, "-") || !strings.Contains(first, transport.PrefixSeparator) {
		return args
	}
	rewritten := make([]string, 0, len(args)+1)
	rewritten = append(rewritten, args[0], "call")
	rewritten = append(rewritten, args[1:]...)
	return rewritten
}
