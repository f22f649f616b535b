package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
)

type failingReranker struct{ available bool }

func (f *failingReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	return nil, errors.New("remote reranker unavailable")
}
func (f *failingReranker) Available(ctx context.Context) bool { return f.available }
func (f *failingReranker) Close() error                       { return nil }

type workingReranker struct{}

func (w *workingReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	out := make([]RerankResult, len(documents))
	for i := range documents {
		// reverse order
		out[i] = RerankResult{Index: len(documents) - 1 - i, Score: float64(i)}
	}
	return out, nil
}
func (w *workingReranker) Available(ctx context.Context) bool { return true }
func (w *workingReranker) Close() error                       { return nil }

func rankedResults() []Result {
	return []Result{
		{Chunk: &chunk.Chunk{ID: "a", Content: "alpha"}, Score: 0.9},
		{Chunk: &chunk.Chunk{ID: "b", Content: "beta"}, Score: 0.5},
	}
}

func TestChain_PrimarySucceeds(t *testing.T) {
	c := &Chain{Primary: &workingReranker{}, Secondary: &failingReranker{available: true}}
	out := c.Rerank(context.Background(), "query", rankedResults(), 2)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Chunk.ID)
}

func TestChain_FallsBackToSecondary(t *testing.T) {
	c := &Chain{Primary: &failingReranker{available: true}, Secondary: &workingReranker{}}
	out := c.Rerank(context.Background(), "query", rankedResults(), 2)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].Chunk.ID)
}

// Rerank fallback invariant: when both remotes fail, the local
// keyword-overlap heuristic still returns a result set, never an error.
func TestChain_FallsBackToLocalKeywordOverlap(t *testing.T) {
	c := &Chain{Primary: &failingReranker{available: true}, Secondary: &failingReranker{available: true}}

	results := []Result{
		// 0.18 + one 0.05 keyword bonus = 0.23 > 0.2.
		{Chunk: &chunk.Chunk{ID: "a", Content: "contains alpha term"}, Score: 0.18},
		{Chunk: &chunk.Chunk{ID: "b", Content: "unrelated"}, Score: 0.2},
	}
	out := c.Rerank(context.Background(), "alpha", results, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Chunk.ID, "keyword match should outrank a higher base score")
}

func TestChain_NoRerankersConfigured_ReturnsUnmodifiedInput(t *testing.T) {
	c := &Chain{}
	results := rankedResults()
	out := c.Rerank(context.Background(), "query", results, 2)
	require.Len(t, out, 2)
	assert.Equal(t, results, out, "no query term occurs in the chunks, so scores and order are unchanged")
}

func TestKeywordOverlapRerank_DistinctTermsOnly(t *testing.T) {
	results := []Result{
		{Chunk: &chunk.Chunk{ID: "a", Content: "foo foo foo"}, Score: 0},
	}
	out := keywordOverlapRerank("foo foo", results, 1)
	assert.InDelta(t, keywordOverlapBonus, out[0].Score, 1e-9, "repeated query terms count once")
}
