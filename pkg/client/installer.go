// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"

	"github.com/pleasehq/please/pkg/logger"
)

// lockTimeout is the maximum time to wait for a settings file lock.
const lockTimeout = 1 * time.Second

// ServerEntry is the gateway entry written into an IDE's MCP settings.
type ServerEntry struct {
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	URL     string   `json:"url,omitempty"`
	Type    string   `json:"type,omitempty"`
}

// GatewayEntry is the default stdio registration for the gateway binary.
func GatewayEntry() ServerEntry {
	return ServerEntry{Command: "please", Args: []string{"serve"}}
}

// Installer upserts and removes server entries in one IDE's settings file.
// Settings files are edited via JSON patches over hujson so user comments
// and formatting survive.
type Installer struct {
	path              string
	serversPathPrefix string
}

// NewInstaller creates an installer for the given IDE, resolving its
// settings path under the user's home directory.
func NewInstaller(ide IDE) (*Installer, error) {
	cfg, err := configFor(ide)
	if err != nil {
		return nil, err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine home directory: %w", err)
	}
	return &Installer{
		path:              cfg.settingsPath(home),
		serversPathPrefix: cfg.ServersPathPrefix,
	}, nil
}

// NewInstallerAt creates an installer pinned to an explicit settings file.
// Used by tests and by --config overrides.
func NewInstallerAt(path, serversPathPrefix string) *Installer {
	return &Installer{path: path, serversPathPrefix: serversPathPrefix}
}

// Path returns the settings file being edited.
func (in *Installer) Path() string {
	return in.path
}

// Upsert inserts or replaces the named server entry.
func (in *Installer) Upsert(serverName string, entry ServerEntry) error {
	return in.withFileLock(func() error {
		content, err := os.ReadFile(in.path) // #nosec G304 - path fixed at construction
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read settings: %w", err)
		}
		if len(content) == 0 {
			content = []byte("{}")
		}

		content, err = in.ensureServersPath(content)
		if err != nil {
			return err
		}

		v, err := hujson.Parse(content)
		if err != nil {
			return fmt.Errorf("failed to parse settings: %w", err)
		}

		entryJSON, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to serialize server entry: %w", err)
		}

		patch := fmt.Sprintf(`[{ "op": "add", "path": "%s/%s", "value": %s }]`,
			in.serversPathPrefix, serverName, entryJSON)
		if err := v.Patch([]byte(patch)); err != nil {
			return fmt.Errorf("failed to patch settings: %w", err)
		}

		return in.writeFormatted(v)
	})
}

// Remove deletes the named server entry. Removing an absent entry is not an
// error.
func (in *Installer) Remove(serverName string) error {
	return in.withFileLock(func() error {
		content, err := os.ReadFile(in.path) // #nosec G304 - path fixed at construction
		if os.IsNotExist(err) || len(content) == 0 {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read settings: %w", err)
		}

		v, err := hujson.Parse(content)
		if err != nil {
			return fmt.Errorf("failed to parse settings: %w", err)
		}

		patch := fmt.Sprintf(`[{ "op": "remove", "path": "%s/%s" }]`, in.serversPathPrefix, serverName)
		if err := v.Patch([]byte(patch)); err != nil {
			if strings.Contains(err.Error(), "value not found") || strings.Contains(err.Error(), "path not found") {
				logger.Debugf("Server %s not present in %s, nothing to remove", serverName, in.path)
				return nil
			}
			return fmt.Errorf("failed to patch settings: %w", err)
		}

		return in.writeFormatted(v)
	})
}

func (in *Installer) withFileLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(in.path), 0750); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	fileLock := flock.New(in.path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock: timeout after %v", lockTimeout)
	}
	defer fileLock.Unlock()

	return fn()
}

func (in *Installer) writeFormatted(v hujson.Value) error {
	formatted, err := hujson.Format(v.Pack())
	if err != nil {
		return fmt.Errorf("failed to format settings: %w", err)
	}

	tmp := in.path + ".tmp"
	if err := os.WriteFile(tmp, formatted, 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, in.path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}

// ensureServersPath creates each missing object along the servers path so a
// later add patch cannot fail on a nonexistent parent. gjson escapes dots in
// keys for retrieval; hujson JSON pointers take them literally.
func (in *Installer) ensureServersPath(content []byte) ([]byte, error) {
	segments := strings.Split(strings.TrimPrefix(in.serversPathPrefix, "/"), "/")

	var patchPath, retrievalPath string
	for _, segment := range segments {
		if patchPath == "" {
			patchPath = "/" + segment
			retrievalPath = strings.ReplaceAll(segment, ".", `\.`)
		} else {
			patchPath += "/" + segment
			retrievalPath += "." + strings.ReplaceAll(segment, ".", `\.`)
		}

		if gjson.GetBytes(content, retrievalPath).Exists() {
			continue
		}

		v, err := hujson.Parse(content)
		if err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
		patch := fmt.Sprintf(`[{ "op": "add", "path": "%s", "value": {} }]`, patchPath)
		if err := v.Patch([]byte(patch)); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", patchPath, err)
		}
		content = v.Pack()
	}
	return content, nil
}
