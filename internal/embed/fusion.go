package embed

import (
	"context"
	"fmt"

	amerr "github.com/RandomsUsernames/sgrep/internal/errors"
)

// FusionStrategy names one of the four ways FusionEngine combines two
// engines' embeddings.
type FusionStrategy string

const (
	// FusionWeightedAverage computes α·a + (1−α)·b.
	FusionWeightedAverage FusionStrategy = "weighted_average"

	// FusionMaxPool takes the per-dimension maximum of a and b.
	FusionMaxPool FusionStrategy = "max_pool"

	// FusionAveragedConcat splits the output into two halves, the first
	// drawn from a and the second from b — a concatenation degenerate
	// into the shared dimensionality rather than doubling it.
	FusionAveragedConcat FusionStrategy = "averaged_concat"

	// FusionMagnitudeAdaptive weights each dimension by that engine's
	// share of the two vectors' combined per-dimension magnitude.
	FusionMagnitudeAdaptive FusionStrategy = "magnitude_adaptive"
)

// FusionEngine composes two local Engines of identical dimensionality
// into one, per spec.md §4.3's "hybrid fusion": both are run on every
// input, L2-normalized independently, combined per Strategy, then
// L2-renormalized.
type FusionEngine struct {
	primary   Engine
	secondary Engine
	strategy  FusionStrategy
	alpha     float32
}

// NewFusionEngine constructs a FusionEngine over two same-dimension
// engines. alpha is only used by FusionWeightedAverage; pass
// DefaultFusionAlpha when the caller has no override.
func NewFusionEngine(primary, secondary Engine, strategy FusionStrategy, alpha float32) (*FusionEngine, error) {
	if primary.Dimensions() != secondary.Dimensions() {
		return nil, amerr.ConfigError(
			fmt.Sprintf("fusion engines have mismatched dimensions: %d vs %d",
				primary.Dimensions(), secondary.Dimensions()), nil)
	}
	if strategy == "" {
		strategy = FusionWeightedAverage
	}
	if alpha <= 0 {
		alpha = DefaultFusionAlpha
	}
	return &FusionEngine{primary: primary, secondary: secondary, strategy: strategy, alpha: alpha}, nil
}

// Embed embeds every text with both engines and fuses the results.
func (f *FusionEngine) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	a, err := f.primary.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	b, err := f.secondary.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	fused := make([][]float32, len(texts))
	for i := range texts {
		fused[i] = f.fuse(normalizeVector(a[i]), normalizeVector(b[i]))
	}
	return fused, nil
}

// EmbedQuery embeds text as a query with both engines (so the rotary
// engine's query prefix asymmetry is preserved) and fuses the results.
func (f *FusionEngine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	a, err := f.primary.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	b, err := f.secondary.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return f.fuse(normalizeVector(a), normalizeVector(b)), nil
}

// EmbedTokens returns per-token vectors from the primary engine only:
// the primary and secondary engines tokenize independently and their
// per-token sequences do not align position-for-position, so fusing
// them the way Embed/EmbedQuery fuse pooled vectors isn't meaningful.
// Returns a Config error if the primary engine doesn't implement
// TokenEmbedder.
func (f *FusionEngine) EmbedTokens(ctx context.Context, text string) ([][]float32, error) {
	te, ok := TokenEmbedderOf(f.primary)
	if !ok {
		return nil, amerr.ConfigError("fusion engine's primary does not support token embeddings", nil)
	}
	return te.EmbedTokens(ctx, text)
}

// EmbedQueryTokens delegates to the primary engine, for the same reason
// EmbedTokens does: the two engines' tokenizations don't align
// position-for-position, so there's no meaningful way to fuse them.
func (f *FusionEngine) EmbedQueryTokens(ctx context.Context, text string) ([][]float32, error) {
	te, ok := TokenQueryEmbedderOf(f.primary)
	if !ok {
		return nil, amerr.ConfigError("fusion engine's primary does not support token-level query embeddings", nil)
	}
	return te.EmbedQueryTokens(ctx, text)
}

// Dimensions returns the shared dimensionality of both engines.
func (f *FusionEngine) Dimensions() int { return f.primary.Dimensions() }

// Close closes both underlying engines.
func (f *FusionEngine) Close() error {
	err1 := f.primary.Close()
	err2 := f.secondary.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (f *FusionEngine) fuse(a, b []float32) []float32 {
	var out []float32
	switch f.strategy {
	case FusionMaxPool:
		out = maxPool(a, b)
	case FusionAveragedConcat:
		out = averagedConcat(a, b)
	case FusionMagnitudeAdaptive:
		out = magnitudeAdaptive(a, b)
	default:
		out = weightedAverage(a, b, f.alpha)
	}
	return normalizeVector(out)
}

func weightedAverage(a, b []float32, alpha float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = alpha*a[i] + (1-alpha)*b[i]
	}
	return out
}

func maxPool(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		if a[i] > b[i] {
			out[i] = a[i]
		} else {
			out[i] = b[i]
		}
	}
	return out
}

func averagedConcat(a, b []float32) []float32 {
	out := make([]float32, len(a))
	half := len(a) / 2
	copy(out[:half], a[:half])
	copy(out[half:], b[half:])
	return out
}

func magnitudeAdaptive(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		absA, absB := float32(abs(a[i])), float32(abs(b[i]))
		total := absA + absB
		if total == 0 {
			out[i] = 0
			continue
		}
		out[i] = (absA/total)*a[i] + (absB/total)*b[i]
	}
	return out
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
