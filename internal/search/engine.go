package search

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
	"github.com/RandomsUsernames/sgrep/internal/store"
)

// HybridSearcher fuses vector similarity, BM25 lexical scoring, and
// optional late-interaction scoring over a Store's chunks.
type HybridSearcher struct {
	store    *store.Store
	embedder Embedder
}

// New creates a HybridSearcher over st, embedding queries with embedder.
func New(st *store.Store, embedder Embedder) *HybridSearcher {
	return &HybridSearcher{store: st, embedder: embedder}
}

// Search embeds the query, selects a candidate set (via the store's ANN
// index if available, otherwise every chunk), scores each candidate, and
// returns the top opts.K results sorted descending by score. Ties keep
// candidate-set order: the ANN result order when the index is used,
// otherwise the store's map iteration order, so equal-score results are
// not returned in insertion order.
func (h *HybridSearcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	k := opts.K
	if k <= 0 {
		k = 10
	}

	queryVec, err := h.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	queryTerms := store.TokenizeQuery(query)

	var queryTokens [][]float32
	if opts.LateInteraction {
		if te, ok := h.embedder.(TokenQueryEmbedder); ok {
			queryTokens, _ = te.EmbedQueryTokens(ctx, query)
		}
	}

	candidates := h.candidateSet(queryVec, k)
	avgLen := h.store.AvgChunkLength(defaultAvgChunkLen)
	idf := h.store.IDF()

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if !passesFilter(c, opts) {
			continue
		}
		results = append(results, h.score(c, queryVec, queryTokens, queryTerms, idf, avgLen, opts))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// candidateSet returns up to 3k candidates from the ANN index if present
// and populated, otherwise every chunk in the store (exhaustive scoring).
func (h *HybridSearcher) candidateSet(queryVec []float32, k int) []*chunk.Chunk {
	if annResults, ok := h.store.ANNSearch(queryVec, 3*k); ok {
		out := make([]*chunk.Chunk, 0, len(annResults))
		for _, r := range annResults {
			if c, found := h.store.Chunk(r.ChunkID); found {
				out = append(out, c)
			}
		}
		return out
	}
	return h.store.Chunks()
}

func passesFilter(c *chunk.Chunk, opts Options) bool {
	if opts.LanguageFilter != "" && c.Language != opts.LanguageFilter {
		return false
	}
	if opts.ExtensionFilter != "" && !strings.HasSuffix(c.FilePath, opts.ExtensionFilter) {
		return false
	}
	return true
}

func (h *HybridSearcher) score(c *chunk.Chunk, queryVec []float32, queryTokens [][]float32, queryTerms []string, idf map[string]float64, avgLen float64, opts Options) Result {
	v := cosineSimilarity(queryVec, c.Embedding)
	bm25 := store.BM25Score(c.Content, queryTerms, idf, avgLen, BM25K1, BM25B)
	normBM25 := store.Sigmoid(0.1 * bm25)

	r := Result{Chunk: c, VectorSim: v, BM25Raw: bm25}

	if opts.LateInteraction && len(queryTokens) > 0 && len(c.TokenEmbeddings) > 0 {
		col := maxSim(queryTokens, c.TokenEmbeddings)
		r.LateInterp = col
		r.Score = 0.5*VectorWeight*v + 0.5*VectorWeight*col + LexicalWeight*normBM25
		return r
	}

	r.Score = VectorWeight*v + LexicalWeight*normBM25
	return r
}

// cosineSimilarity returns the cosine similarity between a and b, or 0 if
// either is empty or zero-length (lexical-only tier chunks have no
// embedding).
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// maxSim is the average, over query tokens, of the maximum cosine
// similarity to any document token.
func maxSim(queryTokens, docTokens [][]float32) float64 {
	if len(queryTokens) == 0 || len(docTokens) == 0 {
		return 0
	}
	var sum float64
	for _, qt := range queryTokens {
		best := -1.0
		for _, dt := range docTokens {
			if sim := cosineSimilarity(qt, dt); sim > best {
				best = sim
			}
		}
		sum += best
	}
	return sum / float64(len(queryTokens))
}
