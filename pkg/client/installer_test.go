// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestUpsertCreatesMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "mcp.json")
	in := NewInstallerAt(path, "/mcpServers")

	require.NoError(t, in.Upsert("please", GatewayEntry()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "please", gjson.GetBytes(content, "mcpServers.please.command").String())
	assert.Equal(t, "serve", gjson.GetBytes(content, "mcpServers.please.args.0").String())
}

func TestUpsertCreatesNestedServersPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"editor.fontSize": 14}`), 0600))

	in := NewInstallerAt(path, "/mcp/servers")
	require.NoError(t, in.Upsert("please", GatewayEntry()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "please", gjson.GetBytes(content, "mcp.servers.please.command").String())
	assert.EqualValues(t, 14, gjson.GetBytes(content, `editor\.fontSize`).Int(), "existing settings preserved")
}

func TestUpsertReplacesExistingEntry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"mcpServers": {"please": {"command": "old-binary"}}}`), 0600))

	in := NewInstallerAt(path, "/mcpServers")
	require.NoError(t, in.Upsert("please", ServerEntry{URL: "http://localhost:4483/mcp", Type: "http"}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4483/mcp", gjson.GetBytes(content, "mcpServers.please.url").String())
	assert.False(t, gjson.GetBytes(content, "mcpServers.please.command").Exists())
}

func TestUpsertPreservesComments(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
	// user's own servers
	"mcpServers": {
		"other": {"command": "other-tool"}
	}
}`), 0600))

	in := NewInstallerAt(path, "/mcpServers")
	require.NoError(t, in.Upsert("please", GatewayEntry()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "// user's own servers")
	assert.Equal(t, "other-tool", gjson.GetBytes(content, "mcpServers.other.command").String())
	assert.Equal(t, "please", gjson.GetBytes(content, "mcpServers.please.command").String())
}

func TestRemoveEntry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mcp.json")
	in := NewInstallerAt(path, "/mcpServers")
	require.NoError(t, in.Upsert("please", GatewayEntry()))
	require.NoError(t, in.Upsert("other", ServerEntry{Command: "other-tool"}))

	require.NoError(t, in.Remove("please"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(content, "mcpServers.please").Exists())
	assert.True(t, gjson.GetBytes(content, "mcpServers.other").Exists())
}

func TestRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mcp.json")
	in := NewInstallerAt(path, "/mcpServers")

	// Missing file, then present file without the entry.
	require.NoError(t, in.Remove("please"))
	require.NoError(t, os.WriteFile(path, []byte(`{"mcpServers": {}}`), 0600))
	require.NoError(t, in.Remove("please"))
}

func TestSupportedIDEs(t *testing.T) {
	t.Parallel()

	ids := SupportedIDEs()
	assert.Equal(t, []string{
		"claude-code", "cline", "cursor", "roo-code", "vscode", "vscode-insiders", "windsurf",
	}, ids)
}

func TestConfigForUnknownIDE(t *testing.T) {
	t.Parallel()

	_, err := NewInstaller(IDE("emacs"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown IDE")
}

func TestSettingsPathLayout(t *testing.T) {
	t.Parallel()

	cursor, err := configFor(Cursor)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/u", ".cursor", "mcp.json"), cursor.settingsPath("/home/u"))

	claude, err := configFor(ClaudeCode)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/u", ".claude.json"), claude.settingsPath("/home/u"))
}
