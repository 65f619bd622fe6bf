// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"strings"

	"github.com/pleasehq/please/pkg/auth/oauth"
	"github.com/pleasehq/please/pkg/config"
	"github.com/pleasehq/please/pkg/embeddings"
)

// Output format constants for the various commands.
const (
	FormatTable   = "table"
	FormatJSON    = "json"
	FormatMinimal = "minimal"
)

// defaultModels maps a provider location to the model used when none is
// named explicitly.
var defaultModels = map[string]string{
	"local":  "all-minilm",
	"openai": "text-embedding-3-small",
	"voyage": "voyage-3-lite",
}

// providerTag combines the --provider and --model flags into a registry tag.
// A provider value already carrying a colon is taken verbatim.
func providerTag(provider, model string) string {
	if provider == "" && model == "" {
		return embeddings.DefaultTag
	}
	if strings.Contains(provider, ":") {
		return provider
	}
	if provider == "" {
		provider = "local"
	}
	if model == "" {
		model = defaultModels[provider]
	}
	return provider + ":" + model
}

// buildProvider constructs the embedding provider for a tag, validating the
// quantization hint first.
func buildProvider(tag, dtype string) (embeddings.Provider, error) {
	hint := embeddings.Dtype(dtype)
	if err := embeddings.ValidateDtype(hint); err != nil {
		return nil, err
	}
	return embeddings.DefaultRegistry().New(tag, embeddings.Options{Dtype: hint})
}

// newTokenManager creates the OAuth manager over the on-disk token store.
func newTokenManager() (*oauth.Manager, error) {
	store, err := oauth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	return oauth.NewManager(store), nil
}

// parseIndexScope validates a --scope flag value against the allowed set.
func parseIndexScope(value string, allowAll bool) (config.IndexScope, error) {
	switch scope := config.IndexScope(value); scope {
	case config.IndexScopeProject, config.IndexScopeUser:
		return scope, nil
	case config.IndexScopeAll:
		if allowAll {
			return scope, nil
		}
	}
	if allowAll {
		return "", fmt.Errorf("invalid scope %q, must be project, user or all", value)
	}
	return "", fmt.Errorf("invalid scope %q, must be project or user", value)
}

// parseConfigScope validates a --scope flag value for config-file commands.
func parseConfigScope(value string) (config.Scope, error) {
	switch scope := config.Scope(value); scope {
	case config.ScopeUser, config.ScopeProject, config.ScopeLocal:
		return scope, nil
	}
	return "", fmt.Errorf("invalid scope %q, must be local, project or user", value)
}

// truncateString shortens a string for table display.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
