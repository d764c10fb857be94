package knowledge

import "math"

// cosineSimilarity computes cosine similarity between two float32 vectors.
// Returns 0 if the lengths differ or either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// scoreAll computes the similarity of every passage to vec.
func scoreAll(vec []float32, passages []Passage) []Scored {
	scored := make([]Scored, 0, len(passages))
	for _, p := range passages {
		scored = append(scored, Scored{Passage: p, Similarity: cosineSimilarity(vec, p.Embedding)})
	}
	return scored
}
