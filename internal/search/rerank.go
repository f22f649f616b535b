package search

import (
	"context"
	"sort"
	"strings"
)

// keywordOverlapBonus is added per distinct lowercased query term found in a
// result's chunk content, applied by the local fallback reranker.
const keywordOverlapBonus = 0.05

// Chain reranks the top 3k results from a HybridSearcher: try a primary
// remote reranker, then a secondary remote reranker, then fall back to a
// local keyword-overlap heuristic. Returning the unmodified input is an
// acceptable terminal state; reranking never fails fatally.
type Chain struct {
	Primary   Reranker
	Secondary Reranker
}

// Rerank reduces results (already the top 3k from a searcher) to the
// requested k, reordered by whichever stage of the chain produced usable
// output.
func (c *Chain) Rerank(ctx context.Context, query string, results []Result, k int) []Result {
	if c.Primary != nil && c.Primary.Available(ctx) {
		if reranked, ok := rerankWith(ctx, c.Primary, query, results, k); ok {
			return reranked
		}
	}
	if c.Secondary != nil && c.Secondary.Available(ctx) {
		if reranked, ok := rerankWith(ctx, c.Secondary, query, results, k); ok {
			return reranked
		}
	}
	return keywordOverlapRerank(query, results, k)
}

func rerankWith(ctx context.Context, r Reranker, query string, results []Result, k int) ([]Result, bool) {
	docs := make([]string, len(results))
	for i, res := range results {
		docs[i] = res.Chunk.Content
	}
	reranked, err := r.Rerank(ctx, query, docs, k)
	if err != nil {
		return nil, false
	}
	out := make([]Result, 0, len(reranked))
	for _, rr := range reranked {
		if rr.Index < 0 || rr.Index >= len(results) {
			continue
		}
		res := results[rr.Index]
		res.Score = rr.Score
		out = append(out, res)
	}
	return out, true
}

// keywordOverlapRerank adds keywordOverlapBonus per distinct lowercased
// query term found in the chunk content, then resorts.
func keywordOverlapRerank(query string, results []Result, k int) []Result {
	terms := uniqueLowerTerms(query)
	out := make([]Result, len(results))
	copy(out, results)

	for i := range out {
		content := strings.ToLower(out[i].Chunk.Content)
		var matched int
		for _, t := range terms {
			if strings.Contains(content, t) {
				matched++
			}
		}
		out[i].Score += float64(matched) * keywordOverlapBonus
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

func uniqueLowerTerms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}
