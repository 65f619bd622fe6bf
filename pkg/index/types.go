// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package index builds, persists and merges the searchable tool index.
package index

import (
	"time"

	"github.com/pleasehq/please/pkg/config"
	"github.com/pleasehq/please/pkg/transport"
)

// Version is the persisted index format version. Loading is gated on the
// major component only.
const Version = "1.0.0"

// BM25Stats are the corpus statistics BM25 scoring needs.
type BM25Stats struct {
	AvgDocLength        float64        `json:"avgDocLength"`
	DocumentFrequencies map[string]int `json:"documentFrequencies"`
	TotalDocuments      int            `json:"totalDocuments"`
}

// IndexedTool pairs a tool definition with its precomputed search
// derivatives.
type IndexedTool struct {
	Tool           transport.ToolDefinition `json:"tool"`
	SearchableText string                   `json:"searchableText"`
	Tokens         []string                 `json:"tokens"`
	Embedding      []float64                `json:"embedding,omitempty"`
}

// CLIArgs are the flag values that participated in an index build. A change
// in any of them invalidates the index.
type CLIArgs struct {
	Mode     string   `json:"mode,omitempty"`
	Provider string   `json:"provider,omitempty"`
	Dtype    string   `json:"dtype,omitempty"`
	Exclude  []string `json:"exclude,omitempty"`
	Scope    string   `json:"scope,omitempty"`
}

// BuildMetadata records everything that determines whether an index is
// stale. An index without it is a legacy index and always rebuildable.
type BuildMetadata struct {
	CLIVersion         string              `json:"cliVersion"`
	CLIArgs            CLIArgs             `json:"cliArgs"`
	ConfigFingerprints config.Fingerprints `json:"configFingerprints"`
}

// Index is the persisted, self-describing index document.
type Index struct {
	Version             string         `json:"version"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
	TotalTools          int            `json:"totalTools"`
	HasEmbeddings       bool           `json:"hasEmbeddings"`
	EmbeddingModel      string         `json:"embeddingModel,omitempty"`
	EmbeddingDimensions int            `json:"embeddingDimensions,omitempty"`
	BM25Stats           BM25Stats      `json:"bm25Stats"`
	Tools               []IndexedTool  `json:"tools"`
	BuildMetadata       *BuildMetadata `json:"buildMetadata,omitempty"`
}

// Metadata is the index header without the tools array.
type Metadata struct {
	Version             string         `json:"version"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
	TotalTools          int            `json:"totalTools"`
	HasEmbeddings       bool           `json:"hasEmbeddings"`
	EmbeddingModel      string         `json:"embeddingModel,omitempty"`
	EmbeddingDimensions int            `json:"embeddingDimensions,omitempty"`
	BuildMetadata       *BuildMetadata `json:"buildMetadata,omitempty"`
}
