package knowledge

import (
	"context"
	"errors"
	"math"

	"github.com/matiasleandrokruk/hubrag/internal/infra/llm"
	"github.com/matiasleandrokruk/hubrag/internal/infra/logging"
)

// Mode selects the ranking policy of a search.
type Mode int

const (
	// Plain returns the k nearest passages.
	Plain Mode = iota
	// MMR re-ranks fetch_k candidates by maximal marginal relevance.
	MMR
)

func (m Mode) String() string {
	if m == MMR {
		return "mmr"
	}
	return "plain"
}

const (
	DefaultK          = 6
	DefaultFetchK     = 20
	DefaultLambdaMult = 0.5
)

// SearchOptions tunes a search. K and FetchK fall back to their defaults when
// not positive; LambdaMult is always honoured (zero is a valid weight), so
// start from DefaultSearchOptions when only some fields change.
type SearchOptions struct {
	Mode       Mode
	K          int
	FetchK     int
	LambdaMult float64
}

// DefaultSearchOptions returns MMR with k=6, fetch_k=20, lambda=0.5.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{Mode: MMR, K: DefaultK, FetchK: DefaultFetchK, LambdaMult: DefaultLambdaMult}
}

func (o SearchOptions) normalized() SearchOptions {
	if o.K <= 0 {
		o.K = DefaultK
	}
	if o.FetchK <= 0 {
		o.FetchK = DefaultFetchK
	}
	if o.FetchK < o.K {
		o.FetchK = o.K
	}
	if math.IsNaN(o.LambdaMult) {
		o.LambdaMult = DefaultLambdaMult
	}
	o.LambdaMult = math.Max(0, math.Min(1, o.LambdaMult))
	return o
}

// Embedder turns text into vectors. Every llm.Provider satisfies it.
type Embedder interface {
	Embed(ctx context.Context, req llm.EmbedRequest) (*llm.EmbedResponse, error)
}

// Retriever embeds a question and ranks passages from a VectorIndex.
// It only reads from the index and is safe for concurrent use.
type Retriever struct {
	index    VectorIndex
	embedder Embedder
	log      *logging.Logger
}

// NewRetriever wires a Retriever. A nil logger discards output.
func NewRetriever(index VectorIndex, embedder Embedder, log *logging.Logger) *Retriever {
	if log == nil {
		log = logging.Nop()
	}
	return &Retriever{index: index, embedder: embedder, log: log}
}

// Search returns at most opts.K passages for query. A corpus smaller than K
// yields a shorter (possibly empty) result rather than an error. Failures of
// the embedder or the index are reported as ErrIndexUnavailable.
func (r *Retriever) Search(ctx context.Context, query string, opts SearchOptions) (Result, error) {
	ctx, span := r.log.StartSpan(ctx, "knowledge.Search")
	defer span.End()

	opts = opts.normalized()

	vec, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	n := opts.K
	if opts.Mode == MMR {
		n = opts.FetchK
	}
	candidates, err := r.index.Nearest(ctx, vec, n)
	if err != nil {
		if errors.Is(err, ErrIndexUnavailable) {
			return nil, err
		}
		return nil, unavailable("nearest", err)
	}

	var result Result
	if opts.Mode == MMR {
		result = selectMMR(candidates, opts.K, opts.LambdaMult)
	} else {
		result = make(Result, 0, min(opts.K, len(candidates)))
		for i := 0; i < len(candidates) && i < opts.K; i++ {
			result = append(result, candidates[i].Passage)
		}
	}

	r.log.Log().Debug().
		Str("mode", opts.Mode.String()).
		Int("candidates", len(candidates)).
		Int("passages", len(result)).
		Msg("retrieval complete")
	return result, nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	resp, err := r.embedder.Embed(ctx, llm.EmbedRequest{Texts: []string{query}})
	if err != nil {
		return nil, unavailable("embed query", err)
	}
	if resp == nil || len(resp.Embeddings) != 1 || len(resp.Embeddings[0]) == 0 {
		return nil, unavailable("embed query", errors.New("embedder returned no vector"))
	}
	return resp.Embeddings[0], nil
}

// selectMMR greedily picks up to k candidates maximising
//
//	lambda·sim(query, c) − (1−lambda)·max sim(c, selected)
//
// where the max over an empty selection is 0. candidates arrive in relevance
// order; a tie on the MMR score goes to the more relevant candidate.
// Duplicate ids are considered once.
func selectMMR(candidates []Scored, k int, lambda float64) Result {
	pool := make([]Scored, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		pool = append(pool, c)
	}

	// maxSim[i] is candidate i's highest similarity to anything selected so far.
	maxSim := make([]float64, len(pool))
	taken := make([]bool, len(pool))
	result := make(Result, 0, min(k, len(pool)))

	for len(result) < k && len(result) < len(pool) {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range pool {
			if taken[i] {
				continue
			}
			score := lambda*c.Similarity - (1-lambda)*maxSim[i]
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		taken[best] = true
		chosen := pool[best]
		result = append(result, chosen.Passage)

		for i, c := range pool {
			if taken[i] {
				continue
			}
			if s := cosineSimilarity(chosen.Embedding, c.Embedding); len(result) == 1 || s > maxSim[i] {
				maxSim[i] = s
			}
		}
	}
	return result
}
