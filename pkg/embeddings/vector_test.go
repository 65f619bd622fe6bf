// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package embeddings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	v := []float64{3, 4}
	Normalize(v)
	assert.InDelta(t, 1.0, norm(v), 1e-12)
	assert.InDelta(t, 0.6, v[0], 1e-12)
	assert.InDelta(t, 0.8, v[1], 1e-12)
}

func TestNormalizeZeroVector(t *testing.T) {
	t.Parallel()

	v := []float64{0, 0, 0}
	Normalize(v)
	assert.Equal(t, []float64{0, 0, 0}, v)
}

func TestTruncateNormalize(t *testing.T) {
	t.Parallel()

	v := []float64{1, 1, 1, 1, 5, 5, 5, 5}
	out := TruncateNormalize(v, 4)
	require.Len(t, out, 4)
	assert.InDelta(t, 1.0, norm(out), 1e-12)
	assert.InDelta(t, 0.5, out[0], 1e-12)
	// The input is not mutated.
	assert.Equal(t, 1.0, v[0])
}

func TestTruncateNormalizeShorterThanDim(t *testing.T) {
	t.Parallel()

	out := TruncateNormalize([]float64{0, 2}, 4)
	require.Len(t, out, 2)
	assert.InDelta(t, 1.0, norm(out), 1e-12)
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	same, err := CosineSimilarity([]float64{1, 0}, []float64{2, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, same, 1e-12)

	orthogonal, err := CosineSimilarity([]float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, orthogonal, 1e-12)

	opposite, err := CosineSimilarity([]float64{1, 0}, []float64{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, opposite, 1e-12)
}

func TestCosineSimilarityZeroNorm(t *testing.T) {
	t.Parallel()

	got, err := CosineSimilarity([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	t.Parallel()

	_, err := CosineSimilarity([]float64{1}, []float64{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}
