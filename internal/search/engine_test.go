package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
	"github.com/RandomsUsernames/sgrep/internal/store"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return s.vec, s.err
}

type stubTokenEmbedder struct {
	stubEmbedder
	tokens [][]float32
}

func (s *stubTokenEmbedder) EmbedQueryTokens(ctx context.Context, query string) ([][]float32, error) {
	return s.tokens, nil
}

func mkChunk(id, path, content string, embedding []float32) *chunk.Chunk {
	return &chunk.Chunk{ID: id, FilePath: path, Content: content, Language: "go", Embedding: embedding, Kind: chunk.KindCode}
}

func TestHybridSearcher_Search_RanksByScoreDescending(t *testing.T) {
	st := store.New()
	st.AddChunk(mkChunk("c1", "a.go", "the quick brown fox", []float32{1, 0}))
	st.AddChunk(mkChunk("c2", "b.go", "totally unrelated content", []float32{0, 1}))
	st.UpdateBM25Stats()

	h := New(st, &stubEmbedder{vec: []float32{1, 0}})

	results, err := h.Search(context.Background(), "quick fox", Options{K: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.Equal(t, "c1", results[0].Chunk.ID)
}

func TestHybridSearcher_Search_LanguageFilter(t *testing.T) {
	st := store.New()
	st.AddChunk(mkChunk("c1", "a.go", "hello", []float32{1, 0}))
	c2 := mkChunk("c2", "b.py", "hello", []float32{1, 0})
	c2.Language = "python"
	st.AddChunk(c2)
	st.UpdateBM25Stats()

	h := New(st, &stubEmbedder{vec: []float32{1, 0}})
	results, err := h.Search(context.Background(), "hello", Options{K: 10, LanguageFilter: "go"})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "go", r.Chunk.Language)
	}
}

func TestHybridSearcher_Search_TruncatesToK(t *testing.T) {
	st := store.New()
	for i := 0; i < 5; i++ {
		st.AddChunk(mkChunk(string(rune('a'+i)), "a.go", "content", []float32{1, 0}))
	}
	st.UpdateBM25Stats()

	h := New(st, &stubEmbedder{vec: []float32{1, 0}})
	results, err := h.Search(context.Background(), "content", Options{K: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestCosineSimilarity_EmptyEmbeddingYieldsZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity(nil, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, nil))
}

func TestCosineSimilarity_IdenticalVectorsYieldOne(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
}

// Invariant: vector similarity must fall within [-1, 1].
func TestCosineSimilarity_Bounded(t *testing.T) {
	sim := cosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	assert.InDelta(t, -1.0, sim, 1e-9)
	assert.GreaterOrEqual(t, sim, -1.0)
	assert.LessOrEqual(t, sim, 1.0)
}

// Invariant: combined score falls within [0, 1] given bounded inputs
// (cosine in [-1,1] scaled by weight 0.7, sigmoid-normalized BM25 in (0,1)
// scaled by weight 0.3 — worst case score is still <= 0.7*1 + 0.3*1 = 1 and
// >= 0.7*-1 + 0.3*0, so in practice combined scores for non-degenerate
// corpora stay near [0,1]).
func TestHybridSearcher_Search_ScoreWithinExpectedRange(t *testing.T) {
	st := store.New()
	st.AddChunk(mkChunk("c1", "a.go", "matching content here", []float32{1, 0}))
	st.UpdateBM25Stats()

	h := New(st, &stubEmbedder{vec: []float32{1, 0}})
	results, err := h.Search(context.Background(), "matching", Options{K: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.LessOrEqual(t, results[0].Score, 1.0)
}

func TestMaxSim_AveragesPerQueryTokenBest(t *testing.T) {
	q := [][]float32{{1, 0}, {0, 1}}
	d := [][]float32{{1, 0}, {0, 1}}
	assert.InDelta(t, 1.0, maxSim(q, d), 1e-9)
}

func TestHybridSearcher_Search_LateInteractionUsesRealTokenEmbeddings(t *testing.T) {
	st := store.New()
	c := mkChunk("c1", "a.go", "matching content", []float32{1, 0})
	c.TokenEmbeddings = [][]float32{{1, 0}, {0, 1}}
	st.AddChunk(c)
	st.UpdateBM25Stats()

	embedder := &stubTokenEmbedder{
		stubEmbedder: stubEmbedder{vec: []float32{1, 0}},
		tokens:       [][]float32{{1, 0}, {0, 1}},
	}
	h := New(st, embedder)

	results, err := h.Search(context.Background(), "matching", Options{K: 1, LateInteraction: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].LateInterp, 1e-9)
}

func TestHybridSearcher_Search_LateInteractionWithoutTokenEmbeddingsDegrades(t *testing.T) {
	st := store.New()
	st.AddChunk(mkChunk("c1", "a.go", "matching content", []float32{1, 0}))
	st.UpdateBM25Stats()

	h := New(st, &stubEmbedder{vec: []float32{1, 0}})
	results, err := h.Search(context.Background(), "matching", Options{K: 1, LateInteraction: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].LateInterp)
}
