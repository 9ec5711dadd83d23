package index

import "math"

// cosineSimilarity computes the cosine similarity between two vectors of
// equal length. Returns 0 for zero-magnitude vectors so that degenerate
// embeddings rank last instead of producing NaN scores.
func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
