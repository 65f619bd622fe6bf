// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package client installs the gateway into the MCP configuration files of
// supported IDEs and agent CLIs.
package client

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// IDE identifies a supported MCP host application.
type IDE string

const (
	// Cursor is the Cursor editor.
	Cursor IDE = "cursor"
	// VSCode is Visual Studio Code.
	VSCode IDE = "vscode"
	// VSCodeInsiders is the VS Code Insiders build.
	VSCodeInsiders IDE = "vscode-insiders"
	// Cline is the VS Code Cline extension.
	Cline IDE = "cline"
	// RooCode is the VS Code Roo Code extension.
	RooCode IDE = "roo-code"
	// ClaudeCode is the Claude Code CLI.
	ClaudeCode IDE = "claude-code"
	// Windsurf is the Windsurf editor.
	Windsurf IDE = "windsurf"
)

// ideConfig locates one IDE's MCP configuration file.
type ideConfig struct {
	IDE          IDE
	Description  string
	SettingsFile string
	RelPath      []string

	// PlatformPrefix is inserted between $HOME and RelPath per GOOS.
	PlatformPrefix map[string][]string

	// ServersPathPrefix is the JSON pointer to the server map inside the
	// settings file.
	ServersPathPrefix string
}

var vscodePlatformPrefix = map[string][]string{
	"linux":   {".config"},
	"darwin":  {"Library", "Application Support"},
	"windows": {"AppData", "Roaming"},
}

var supportedIDEs = []ideConfig{
	{
		IDE:               Cursor,
		Description:       "Cursor editor",
		SettingsFile:      "mcp.json",
		RelPath:           []string{".cursor"},
		ServersPathPrefix: "/mcpServers",
	},
	{
		IDE:               VSCode,
		Description:       "Visual Studio Code",
		SettingsFile:      "settings.json",
		RelPath:           []string{"Code", "User"},
		PlatformPrefix:    vscodePlatformPrefix,
		ServersPathPrefix: "/mcp/servers",
	},
	{
		IDE:               VSCodeInsiders,
		Description:       "Visual Studio Code Insiders",
		SettingsFile:      "settings.json",
		RelPath:           []string{"Code - Insiders", "User"},
		PlatformPrefix:    vscodePlatformPrefix,
		ServersPathPrefix: "/mcp/servers",
	},
	{
		IDE:          Cline,
		Description:  "VS Code Cline extension",
		SettingsFile: "cline_mcp_settings.json",
		RelPath: []string{
			"Code", "User", "globalStorage", "saoudrizwan.claude-dev", "settings",
		},
		PlatformPrefix:    vscodePlatformPrefix,
		ServersPathPrefix: "/mcpServers",
	},
	{
		IDE:          RooCode,
		Description:  "VS Code Roo Code extension",
		SettingsFile: "mcp_settings.json",
		RelPath: []string{
			"Code", "User", "globalStorage", "rooveterinaryinc.roo-cline", "settings",
		},
		PlatformPrefix:    vscodePlatformPrefix,
		ServersPathPrefix: "/mcpServers",
	},
	{
		IDE:               ClaudeCode,
		Description:       "Claude Code CLI",
		SettingsFile:      ".claude.json",
		RelPath:           []string{},
		ServersPathPrefix: "/mcpServers",
	},
	{
		IDE:               Windsurf,
		Description:       "Windsurf editor",
		SettingsFile:      "mcp_config.json",
		RelPath:           []string{".codeium", "windsurf"},
		ServersPathPrefix: "/mcpServers",
	},
}

// SupportedIDEs lists the recognized IDE identifiers, sorted.
func SupportedIDEs() []string {
	ids := make([]string, 0, len(supportedIDEs))
	for _, cfg := range supportedIDEs {
		ids = append(ids, string(cfg.IDE))
	}
	sort.Strings(ids)
	return ids
}

func configFor(ide IDE) (*ideConfig, error) {
	for i := range supportedIDEs {
		if supportedIDEs[i].IDE == ide {
			return &supportedIDEs[i], nil
		}
	}
	return nil, fmt.Errorf("unknown IDE %q, supported: %v", ide, SupportedIDEs())
}

func (c *ideConfig) settingsPath(homeDir string) string {
	parts := []string{homeDir}
	if prefix, ok := c.PlatformPrefix[runtime.GOOS]; ok {
		parts = append(parts, prefix...)
	}
	parts = append(parts, c.RelPath...)
	parts = append(parts, c.SettingsFile)
	return filepath.Clean(filepath.Join(parts...))
}

// SettingsPath resolves the IDE's settings file under the user's home
// directory.
func SettingsPath(ide IDE) (string, error) {
	cfg, err := configFor(ide)
	if err != nil {
		return "", err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return cfg.settingsPath(home), nil
}
