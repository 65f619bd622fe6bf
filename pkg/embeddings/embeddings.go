// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

// Package embeddings provides the embedding providers used to build and
// query the semantic side of the tool index.
package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"slices"
)

// Dtype is a quantization hint for local providers. Remote providers
// ignore it.
type Dtype string

const (
	DtypeFP32  Dtype = "fp32"
	DtypeFP16  Dtype = "fp16"
	DtypeQ8    Dtype = "q8"
	DtypeQ4    Dtype = "q4"
	DtypeQ4F16 Dtype = "q4f16"
)

var validDtypes = []Dtype{DtypeFP32, DtypeFP16, DtypeQ8, DtypeQ4, DtypeQ4F16}

// ValidateDtype rejects quantization hints outside the supported set. The
// empty string means "provider default".
func ValidateDtype(dtype Dtype) error {
	if dtype == "" || slices.Contains(validDtypes, dtype) {
		return nil
	}
	return fmt.Errorf("invalid dtype %q, must be one of %v", dtype, validDtypes)
}

// Provider turns text into fixed-dimension unit-norm vectors.
type Provider interface {
	// Initialize prepares the provider. It is idempotent and fails when
	// required credentials are absent.
	Initialize(ctx context.Context) error

	// Embed returns a unit-norm vector of Dimension() components.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch embeds texts in order. Implementations may fall back to
	// sequential embedding.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimension is the fixed output dimension.
	Dimension() int

	// Tag is the location:model identifier the provider was registered
	// under.
	Tag() string

	// Dispose releases loaded resources. Safe to call multiple times.
	Dispose() error
}

// Options configure a provider at construction time.
type Options struct {
	// Dtype is the quantization hint for local providers.
	Dtype Dtype

	// BaseURL overrides the provider's endpoint. Used by tests and by
	// self-hosted deployments.
	BaseURL string

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}
