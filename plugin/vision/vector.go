// Package vision provides the numeric layer for visual product matching:
// embedding normalization, similarity, thresholds and embedding producers.
package vision

import (
	"errors"
	"math"
)

// ErrLengthMismatch is returned when two vectors of different dimensionality are compared.
var ErrLengthMismatch = errors.New("vectors must have the same length to compute cosine similarity")

// NormalizeL2 returns a copy of vector scaled to unit Euclidean length.
// Non-finite elements are treated as 0 and come out as 0. A zero norm leaves
// the (sanitized) values untouched.
func NormalizeL2(vector []float32) []float32 {
	var sumSquares float64
	for _, v := range vector {
		f := float64(v)
		if isFinite(f) {
			sumSquares += f * f
		}
	}

	norm := 1.0
	if sumSquares > 0 {
		norm = math.Sqrt(sumSquares)
	}

	normalized := make([]float32, len(vector))
	for i, v := range vector {
		f := float64(v)
		if !isFinite(f) {
			continue
		}
		normalized[i] = float32(f / norm)
	}
	return normalized
}

// CosineSimilarity computes dot(a,b) / (|a| * |b|).
// Element pairs where either side is non-finite are skipped. Degenerate
// vectors yield 0. The result is not clamped.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		if !isFinite(va) || !isFinite(vb) {
			continue
		}
		dot += va * vb
		normA += va * va
		normB += vb * vb
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
