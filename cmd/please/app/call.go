// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pleasehq/please/pkg/config"
	"github.com/pleasehq/please/pkg/executor"
)

var callCmd = &cobra.Command{
	Use:   "call <server>__<tool>",
	Short: "Execute an indexed tool on its upstream server",
	Long: `Execute one tool by its fully-qualified name. Arguments are passed as a
JSON object via --args or on stdin. The exit code is 0 only when the upstream
reports success; a tool-level error exits 1.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         callCmdFunc,
}

var (
	callArgs      string
	callIndexPath string
	callFormat    string
)

func init() {
	callCmd.Flags().StringVar(&callArgs, "args", "", "Tool arguments as a JSON object (reads stdin when piped)")
	callCmd.Flags().StringVar(&callIndexPath, "index", "", "Explicit index file instead of the scope default")
	callCmd.Flags().StringVar(&callFormat, "format", FormatMinimal, "Output format (json or minimal)")
}

func callCmdFunc(cmd *cobra.Command, args []string) error {
	toolArgs, err := readToolArgs()
	if err != nil {
		return err
	}

	loader, err := newLoader(callIndexPath, string(config.IndexScopeAll))
	if err != nil {
		return err
	}
	resolver, err := config.NewResolver()
	if err != nil {
		return err
	}
	tokens, err := newTokenManager()
	if err != nil {
		return err
	}

	// Execution sees the full user+project+local federation.
	servers := resolver.ResolveServers(config.IndexScopeProject)
	result, err := executor.New(loader, servers, tokens).Execute(cmd.Context(), args[0], toolArgs)
	if err != nil {
		return err
	}

	if callFormat == FormatJSON {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		fmt.Println(result.Text())
	}

	if result.IsError {
		return fmt.Errorf("tool %s reported an error: %s", args[0], result.ErrorText())
	}
	return nil
}

// readToolArgs parses the --args JSON, falling back to piped stdin.
func readToolArgs() (map[string]any, error) {
	raw := callArgs
	if raw == "" {
		stat, err := os.Stdin.Stat()
		if err == nil && stat.Mode()&os.ModeCharDevice == 0 {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return nil, fmt.Errorf("failed to read arguments from stdin: %w", err)
			}
			raw = strings.TrimSpace(string(data))
		}
	}
	if raw == "" {
		return map[string]any{}, nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	return parsed, nil
}
