// Package knowledge holds the retrieval side of hubrag: the passage model,
// the VectorIndex port with its sqlite, in-memory and Qdrant adapters, and the
// Retriever that ranks passages for a question (plain top-k or MMR).
//
// The index is built offline; nothing in this package writes to it.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrIndexUnavailable is returned when the index or the query embedder cannot
// be reached. Callers may fall back to answering without retrieved context.
var ErrIndexUnavailable = errors.New("knowledge: index unavailable")

// Passage is one unit of indexed corpus text with its precomputed embedding.
type Passage struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Scored is a passage with its cosine similarity to a query vector.
type Scored struct {
	Passage
	Similarity float64
}

// Result is an ordered retrieval result, best first.
type Result []Passage

// IDs returns the passage ids in order.
func (r Result) IDs() []string {
	ids := make([]string, len(r))
	for i, p := range r {
		ids[i] = p.ID
	}
	return ids
}

// Texts returns the passage texts in order.
func (r Result) Texts() []string {
	texts := make([]string, len(r))
	for i, p := range r {
		texts[i] = p.Text
	}
	return texts
}

// VectorIndex is the nearest-neighbour lookup consumed by the Retriever.
type VectorIndex interface {
	// Nearest returns up to n passages by descending cosine similarity to vec,
	// ties broken by ascending passage id. Embeddings are included.
	Nearest(ctx context.Context, vec []float32, n int) ([]Scored, error)
}

// unavailable wraps err so that errors.Is(err, ErrIndexUnavailable) holds.
func unavailable(op string, err error) error {
	return fmt.Errorf("knowledge: %s: %w: %w", op, ErrIndexUnavailable, err)
}

// rankScored sorts by descending similarity, ties by ascending id, and keeps
// at most n entries.
func rankScored(scored []Scored, n int) []Scored {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].ID < scored[j].ID
	})
	if n < 0 {
		n = 0
	}
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored
}
