package store

import (
	"math"
	"strings"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
)

// tokenizeWhitespace lowercases content and splits on whitespace. Punctuation
// stays attached to its token (so "Foo::bar" is one token) — this is the
// reference tokenization for BM25 and must not be confused with the
// identifier-splitting tokenizer used elsewhere for fuzzy symbol search.
func tokenizeWhitespace(content string) []string {
	return strings.Fields(strings.ToLower(content))
}

// TokenizeQuery applies the same whitespace/lowercase tokenization used for
// BM25 indexing to a search query, so query terms can be looked up in the
// idf table and matched against tokenized chunk content.
func TokenizeQuery(query string) []string {
	return tokenizeWhitespace(query)
}

// computeIDF recomputes term -> idf over the given chunk set using
// ln((N - df + 0.5)/(df + 0.5) + 1), where df is the number of chunks
// containing the term at least once (per-chunk unique terms).
func computeIDF(chunks map[string]*chunk.Chunk) map[string]float64 {
	n := len(chunks)
	df := make(map[string]int)
	for _, c := range chunks {
		seen := make(map[string]struct{})
		for _, tok := range tokenizeWhitespace(c.Content) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	idf := make(map[string]float64, len(df))
	for term, d := range df {
		nf, dff := float64(n), float64(d)
		idf[term] = math.Log((nf-dff+0.5)/(dff+0.5) + 1)
	}
	return idf
}

// BM25Score scores content against query terms using the Okapi BM25
// formula with the given idf table, average document length, and k1/b
// parameters.
func BM25Score(content string, queryTerms []string, idf map[string]float64, avgLen, k1, b float64) float64 {
	if avgLen <= 0 {
		avgLen = 1
	}
	tokens := tokenizeWhitespace(content)
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	// Document length is the content's byte length, the same unit
	// Store.AvgChunkLength averages.
	docLen := float64(len(content))

	var score float64
	for _, qt := range queryTerms {
		f, ok := tf[qt]
		if !ok {
			continue
		}
		termIDF := idf[qt]
		numerator := float64(f) * (k1 + 1)
		denominator := float64(f) + k1*(1-b+b*(docLen/avgLen))
		score += termIDF * (numerator / denominator)
	}
	return score
}

// Sigmoid is σ(x) = 1/(1+e^-x), used to normalize BM25 scores into (0,1)
// before combining with vector similarity.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
