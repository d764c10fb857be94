package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// QdrantConfig points at a Qdrant collection created with cosine distance.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// QdrantIndex is a VectorIndex backed by the Qdrant REST API.
// The passage text is read from the "text" payload key; other payload keys
// become metadata.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// NewQdrantIndex creates a client; no request is made until Nearest.
func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type qdrantSearchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	WithVector  bool      `json:"with_vector"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
		Vector  []float32      `json:"vector"`
	} `json:"result"`
}

// Nearest runs points/search with vectors so the Retriever can compute MMR.
func (q *QdrantIndex) Nearest(ctx context.Context, vec []float32, n int) ([]Scored, error) {
	if n <= 0 {
		return []Scored{}, nil
	}
	body, err := json.Marshal(qdrantSearchRequest{Vector: vec, Limit: n, WithPayload: true, WithVector: true})
	if err != nil {
		return nil, unavailable("qdrant encode", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", q.url, q.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, unavailable("qdrant build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, unavailable("qdrant search", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 300 {
		return nil, unavailable("qdrant search", fmt.Errorf("status %s", resp.Status))
	}

	var out qdrantSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, unavailable("qdrant decode", err)
	}

	scored := make([]Scored, 0, len(out.Result))
	for _, r := range out.Result {
		p := Passage{ID: pointID(r.ID), Embedding: r.Vector, Metadata: map[string]any{}}
		for k, v := range r.Payload {
			if k == "text" {
				p.Text, _ = v.(string)
				continue
			}
			p.Metadata[k] = v
		}
		scored = append(scored, Scored{Passage: p, Similarity: r.Score})
	}
	return rankScored(scored, n), nil
}

// pointID renders a Qdrant point id (unsigned integer or UUID) as a string.
func pointID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}
