package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteIndex reads the passage table and ranks in memory. It suits corpora
// of a few tens of thousands of passages; larger ones belong in Qdrant.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex creates an index over the migrated passage table.
func NewSQLiteIndex(db *sql.DB) *SQLiteIndex {
	return &SQLiteIndex{db: db}
}

// Nearest loads every passage, skipping rows with malformed embeddings.
func (s *SQLiteIndex) Nearest(ctx context.Context, vec []float32, n int) ([]Scored, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, embedding, metadata FROM passage`)
	if err != nil {
		return nil, unavailable("sqlite nearest", err)
	}
	defer rows.Close()

	var scored []Scored
	for rows.Next() {
		var (
			p             Passage
			embJSON, meta string
		)
		if scanErr := rows.Scan(&p.ID, &p.Text, &embJSON, &meta); scanErr != nil {
			return nil, unavailable("sqlite nearest scan", scanErr)
		}
		emb, decodeErr := decodeEmbedding(embJSON)
		if decodeErr != nil {
			continue
		}
		p.Embedding = emb
		if meta != "" && meta != "{}" {
			_ = json.Unmarshal([]byte(meta), &p.Metadata) //nolint:errcheck // metadata is informational
		}
		scored = append(scored, Scored{Passage: p, Similarity: cosineSimilarity(vec, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("sqlite nearest rows", err)
	}
	return rankScored(scored, n), nil
}

// decodeEmbedding deserialises a JSON TEXT vector back to []float32.
// e.g. "[0.1,0.2,0.3]" → []float32{0.1, 0.2, 0.3}
func decodeEmbedding(jsonStr string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(jsonStr), &vec); err != nil {
		return nil, fmt.Errorf("decodeEmbedding: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("decodeEmbedding: empty vector")
	}
	return vec, nil
}
