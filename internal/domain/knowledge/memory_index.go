package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// MemoryIndex is an in-process VectorIndex over a fixed slice of passages.
// Used by tests and by the ask command with a local corpus file.
type MemoryIndex struct {
	mu       sync.RWMutex
	passages []Passage
}

// NewMemoryIndex creates an index holding passages.
func NewMemoryIndex(passages ...Passage) *MemoryIndex {
	m := &MemoryIndex{}
	m.Add(passages...)
	return m
}

// Add appends passages to the index.
func (m *MemoryIndex) Add(passages ...Passage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passages = append(m.passages, passages...)
}

// Len returns the number of passages held.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.passages)
}

// Nearest scans every passage.
func (m *MemoryIndex) Nearest(ctx context.Context, vec []float32, n int) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("memory nearest", err)
	}
	m.mu.RLock()
	scored := scoreAll(vec, m.passages)
	m.mu.RUnlock()
	return rankScored(scored, n), nil
}

// LoadCorpus decodes a JSON array of passages with precomputed embeddings.
// Passages without an id, text or embedding are rejected.
func LoadCorpus(r io.Reader) ([]Passage, error) {
	var passages []Passage
	if err := json.NewDecoder(r).Decode(&passages); err != nil {
		return nil, fmt.Errorf("knowledge: decode corpus: %w", err)
	}
	for i, p := range passages {
		if p.ID == "" || p.Text == "" || len(p.Embedding) == 0 {
			return nil, fmt.Errorf("knowledge: corpus entry %d: id, text and embedding are required", i)
		}
	}
	return passages, nil
}
