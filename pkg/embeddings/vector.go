// SPDX-FileCopyrightText: Copyright 2025 Please Authors
// SPDX-License-Identifier: Apache-2.0

package embeddings

import (
	"fmt"
	"math"
)

// Normalize scales a vector to unit L2 norm in place. Zero vectors are left
// untouched.
func Normalize(vector []float64) {
	norm := 0.0
	for _, v := range vector {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] /= norm
	}
}

// TruncateNormalize slices a Matryoshka-trained vector to its first dim
// components and re-normalizes the result.
func TruncateNormalize(vector []float64, dim int) []float64 {
	if len(vector) > dim {
		vector = vector[:dim]
	}
	out := make([]float64, len(vector))
	copy(out, vector)
	Normalize(out)
	return out
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Zero-norm vectors yield 0. A length mismatch is an error.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
