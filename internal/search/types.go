// Package search fuses dense vector similarity, BM25 lexical scoring, and
// optional token-level late-interaction scoring into a single ranked result
// list, with an optional reranking stage.
package search

import (
	"context"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
)

// Reference scoring weights and BM25 parameters.
const (
	VectorWeight  = 0.7
	LexicalWeight = 0.3
	BM25K1        = 1.2
	BM25B         = 0.75

	// defaultAvgChunkLen is used when the store holds no chunks yet.
	defaultAvgChunkLen = 200.0
)

// Embedder turns a query string into a dense vector for search. Implemented
// by the embed package's query-side encoders.
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// TokenQueryEmbedder is implemented by Embedders that can additionally
// produce per-token query embeddings for late-interaction scoring. The
// embed package's local transformer encoders (and a FusionEngine or
// CachedEngine wrapping one) implement it; a RemoteEngine or
// StaticEngine does not, since neither exposes per-token hidden states.
type TokenQueryEmbedder interface {
	EmbedQueryTokens(ctx context.Context, query string) ([][]float32, error)
}

// Options configures a single hybrid search call.
type Options struct {
	// K is the number of results to return.
	K int

	// LanguageFilter, if non-empty, restricts candidates to this language
	// (matched against Chunk.Language).
	LanguageFilter string

	// ExtensionFilter, if non-empty, restricts candidates to file paths
	// ending in this extension (e.g. ".go").
	ExtensionFilter string

	// LateInteraction enables token-level max-sim scoring when both the
	// query and candidate chunks carry per-token embeddings.
	LateInteraction bool
}

// Result is a single scored hit.
type Result struct {
	Chunk      *chunk.Chunk
	Score      float64
	VectorSim  float64
	BM25Raw    float64
	LateInterp float64 // max-sim late-interaction contribution, 0 if disabled
}
