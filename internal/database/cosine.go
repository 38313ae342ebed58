package database

import "math"

// NormalizeL2 returns the unit-length copy of v, computed in float64.
// A zero vector is returned unchanged (all zeros).
func NormalizeL2(v []float32) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		out[i] = float64(x)
		sum += out[i] * out[i]
	}
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i := range out {
		out[i] /= norm
	}
	return out
}

// Dot returns the inner product of two equal-length vectors.
// Mismatched lengths return 0.
func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Returns 0 for invalid input (length mismatch, empty or zero vectors).
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return Dot(NormalizeL2(a), NormalizeL2(b))
}
