// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ remoteProvider }

func TestDefaultRegistryTags(t *testing.T) {
	t.Parallel()

	tags := DefaultRegistry().Tags()
	assert.Equal(t, []string{
		"local:all-minilm",
		"local:nomic-embed-text",
		"openai:text-embedding-3-small",
		"voyage:voyage-3-lite",
	}, tags)
}

func TestRegistryUnknownTag(t *testing.T) {
	t.Parallel()

	_, err := DefaultRegistry().New("local:nonexistent", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embedding provider")
	assert.Contains(t, err.Error(), "local:all-minilm", "error lists the available tags")
}

func TestRegistryRuntimeRegistration(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register("custom:test", func(_ Options) (Provider, error) {
		return &stubProvider{remoteProvider{tag: "custom:test", dim: 8}}, nil
	})

	provider, err := registry.New("custom:test", Options{})
	require.NoError(t, err)
	assert.Equal(t, "custom:test", provider.Tag())
	assert.Equal(t, 8, provider.Dimension())
}

func TestRegistryProviderDimensions(t *testing.T) {
	t.Parallel()

	registry := DefaultRegistry()
	tests := []struct {
		tag string
		dim int
	}{
		{"local:all-minilm", 384},
		{"local:nomic-embed-text", 256},
		{"openai:text-embedding-3-small", 1536},
		{"voyage:voyage-3-lite", 512},
	}
	for _, tt := range tests {
		provider, err := registry.New(tt.tag, Options{})
		require.NoError(t, err, tt.tag)
		assert.Equal(t, tt.dim, provider.Dimension(), tt.tag)
	}
}

func TestLocalProviderRejectsBadDtype(t *testing.T) {
	t.Parallel()

	_, err := DefaultRegistry().New("local:all-minilm", Options{Dtype: "int3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid dtype")
}

func TestValidateDtype(t *testing.T) {
	t.Parallel()

	for _, d := range []Dtype{"", DtypeFP32, DtypeFP16, DtypeQ8, DtypeQ4, DtypeQ4F16} {
		assert.NoError(t, ValidateDtype(d))
	}
	assert.Error(t, ValidateDtype("bf16"))
}

func TestRemoteInitializeRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	provider, err := DefaultRegistry().New("openai:text-embedding-3-small", Options{})
	require.NoError(t, err)
	err = provider.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}
