// Package similarity scores and ranks stored vectors against a query.
package similarity

import (
	"math"
	"sort"

	"pagerag/internal/domain"
)

// DefaultTopK is used when a caller asks for zero or fewer results.
const DefaultTopK = 5

// Cosine returns the cosine similarity of a and b over their common prefix.
// Zero vectors score 0.
func Cosine(a, b []float64) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK scores every vector against query and returns the best topK chunks,
// highest score first. Ties keep insertion order.
func TopK(query []float64, chunks []domain.Chunk, vectors [][]float64, topK int) []domain.SearchResult {
	if topK <= 0 {
		topK = DefaultTopK
	}
	results := make([]domain.SearchResult, len(chunks))
	for i := range chunks {
		results[i] = domain.SearchResult{Chunk: chunks[i], Score: Cosine(vectors[i], query)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results
}
