// Package embed implements the three EmbeddingEngine variants: a remote
// HTTP provider, two local transformer architectures (a standard
// bidirectional encoder and a rotary-position encoder with SwiGLU feed-
// forward), and a fusion engine composing two local engines.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// MinBatchSize is the smallest accepted batch size for a single Embed call.
	MinBatchSize = 1

	// MaxBatchSize bounds a single Embed call to prevent unbounded memory use.
	MaxBatchSize = 256

	// DefaultBatchSize is the batch size the Indexer uses unless overridden.
	DefaultBatchSize = 50

	// DefaultTimeout bounds a single remote call.
	DefaultTimeout = 30 * time.Second

	// DefaultDimensions is the embedding width shared by both local encoders.
	DefaultDimensions = 768

	// StandardMaxTokens is the standard bidirectional encoder's context limit.
	StandardMaxTokens = 512

	// RotaryMaxTokens is the rotary-position encoder's context limit.
	RotaryMaxTokens = 8192

	// QueryPrefix is prepended to queries sent to the rotary-position
	// ("code-optimized") encoder, matching its training asymmetry.
	QueryPrefix = "search_query: "

	// DefaultFusionAlpha is the weighted-average fusion strategy's default
	// weight on the first (code-specialist) embedder.
	DefaultFusionAlpha = 0.4
)

// Engine is the shared contract for all three EmbeddingEngine variants:
// remote provider, local single-model, and dual-model fusion. Expressed as
// an interface rather than a class hierarchy, since the fusion variant is
// composition over two Engines behind the same contract, not a subtype.
type Engine interface {
	// Embed returns one vector per input string, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string, applying any query-side
	// asymmetry (e.g. a prefix marker) the underlying model requires.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the width of vectors this engine produces.
	Dimensions() int

	// Close releases any resources (HTTP connections, loaded weights).
	Close() error
}

// TokenEmbedder is implemented by Engine variants that can additionally
// expose the per-token hidden states computed before pooling, feeding
// the HybridSearcher's late-interaction (max-sim) scoring. The local
// transformer encoders and FusionEngine (delegating to its primary)
// implement it; RemoteEngine and StaticEngine do not, since neither
// computes per-token hidden states. Callers must type-assert (or use
// TokenEmbedderOf, which also unwraps a CachedEngine).
type TokenEmbedder interface {
	// EmbedTokens returns one L2-normalized vector per token of text, in
	// tokenization order, reflecting the engine's own tokenizer and
	// context window.
	EmbedTokens(ctx context.Context, text string) ([][]float32, error)
}

// TokenEmbedderOf reports whether e (or the engine it wraps, for a
// CachedEngine) supports per-token embedding, returning the concrete
// TokenEmbedder to call if so.
func TokenEmbedderOf(e Engine) (TokenEmbedder, bool) {
	if cached, ok := e.(*CachedEngine); ok {
		e = cached.Inner()
	}
	te, ok := e.(TokenEmbedder)
	return te, ok
}

// TokenQueryEmbedder is implemented by Engine variants that can
// additionally produce per-token query embeddings, applying whatever
// query-side asymmetry EmbedQuery applies, for late-interaction scoring
// against a candidate's TokenEmbeddings.
type TokenQueryEmbedder interface {
	EmbedQueryTokens(ctx context.Context, query string) ([][]float32, error)
}

// TokenQueryEmbedderOf reports whether e (or the engine it wraps, for a
// CachedEngine) supports per-token query embedding.
func TokenQueryEmbedderOf(e Engine) (TokenQueryEmbedder, bool) {
	if cached, ok := e.(*CachedEngine); ok {
		e = cached.Inner()
	}
	te, ok := e.(TokenQueryEmbedder)
	return te, ok
}

// normalizeVector L2-normalizes v in place and returns it. A zero vector is
// returned unchanged, since there is no direction to normalize to.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	inv := 1.0 / math.Sqrt(sumSquares)
	for i, x := range v {
		v[i] = float32(float64(x) * inv)
	}
	return v
}

// magnitude returns the L2 norm of v.
func magnitude(v []float32) float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	return math.Sqrt(sumSquares)
}

// hasNonFinite reports whether v contains NaN or Inf, the Inference failure
// condition named in spec.md §4.3/§7.
func hasNonFinite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}
