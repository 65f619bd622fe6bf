// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/pleasehq/please/pkg/config"
)

// RegenerationCheck is the rebuild verdict with its human-readable reasons.
// needsRebuild is true exactly when the reasons list is nonempty.
type RegenerationCheck struct {
	NeedsRebuild bool
	Reasons      []string
}

// CheckRegeneration decides whether the index at the store's path must be
// rebuilt, given the flag values of the current invocation. The checks run
// in a fixed order so the reasons read top-down: file presence, format,
// CLI version, build flags, then config fingerprints.
func CheckRegeneration(store *Store, current BuildMetadata) RegenerationCheck {
	var reasons []string

	idx, err := store.Load()
	switch {
	case err != nil && errors.Is(err, os.ErrNotExist):
		reasons = append(reasons, "Index not found")
	case err != nil:
		reasons = append(reasons, fmt.Sprintf("Index corrupted: %v", err))
	case idx.BuildMetadata == nil:
		reasons = append(reasons, "Index has legacy format (no build metadata)")
	default:
		stored := idx.BuildMetadata
		if stored.CLIVersion != current.CLIVersion {
			reasons = append(reasons, fmt.Sprintf("CLI version changed (%s -> %s)",
				stored.CLIVersion, current.CLIVersion))
		}
		reasons = append(reasons, compareCLIArgs(stored.CLIArgs, current.CLIArgs)...)
		reasons = append(reasons, compareFingerprints(
			stored.ConfigFingerprints, current.ConfigFingerprints, current.CLIArgs.Scope)...)
	}

	return RegenerationCheck{NeedsRebuild: len(reasons) > 0, Reasons: reasons}
}

func compareCLIArgs(stored, current CLIArgs) []string {
	var reasons []string
	if stored.Mode != current.Mode {
		reasons = append(reasons, fmt.Sprintf("Search mode changed (%s -> %s)",
			orNone(stored.Mode), orNone(current.Mode)))
	}
	if stored.Provider != current.Provider {
		reasons = append(reasons, fmt.Sprintf("Embedding provider changed (%s -> %s)",
			orNone(stored.Provider), orNone(current.Provider)))
	}
	if stored.Dtype != current.Dtype {
		reasons = append(reasons, fmt.Sprintf("Model dtype changed (%s -> %s)",
			orNone(stored.Dtype), orNone(current.Dtype)))
	}
	if !sameMultiset(stored.Exclude, current.Exclude) {
		reasons = append(reasons, "Excluded servers changed")
	}
	return reasons
}

// sameMultiset compares the exclude lists order-insensitively.
func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sortedA := slices.Clone(a)
	sortedB := slices.Clone(b)
	slices.Sort(sortedA)
	slices.Sort(sortedB)
	return slices.Equal(sortedA, sortedB)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// compareFingerprints reports config file transitions for every scope the
// index scope can see. A user-scoped index only depends on the user file.
func compareFingerprints(stored, current config.Fingerprints, scope string) []string {
	var scopes []string
	if config.IndexScope(scope) == config.IndexScopeUser {
		scopes = []string{string(config.ScopeUser)}
	} else {
		scopes = []string{string(config.ScopeUser), string(config.ScopeProject), string(config.ScopeLocal)}
	}

	var reasons []string
	for _, name := range scopes {
		old := stored[name]
		now := current[name]
		switch {
		case !old.Exists && now.Exists:
			reasons = append(reasons, fmt.Sprintf("Config file added (%s scope)", name))
		case old.Exists && !now.Exists:
			reasons = append(reasons, fmt.Sprintf("Config file removed (%s scope)", name))
		case old.Exists && now.Exists && old.Hash != now.Hash:
			reasons = append(reasons, fmt.Sprintf("Config file content changed (%s scope)", name))
		}
	}
	return reasons
}
