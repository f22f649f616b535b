package transformer

import (
	"context"
	"sync"
)

// StandardEncoder is the standard bidirectional transformer encoder:
// learned position embeddings, post-norm blocks, GELU feed-forward,
// 512-token context. Implements embed.Engine without importing it
// directly, avoiding an import cycle — internal/embed's factory wraps
// this type behind the Engine interface at construction time.
type StandardEncoder struct {
	cfg       Config
	weights   *Weights
	tokenizer *Tokenizer
	mu        sync.Mutex
}

// NewStandardEncoder constructs a StandardEncoder from an explicit
// config/weights/tokenizer triple, as loaded from a model cache
// directory or built deterministically for tests.
func NewStandardEncoder(cfg Config, weights *Weights, tokenizer *Tokenizer) *StandardEncoder {
	return &StandardEncoder{cfg: cfg, weights: weights, tokenizer: tokenizer}
}

// Embed returns one unit vector of cfg.HiddenSize dimensions (768 for
// StandardConfig) per input string.
func (e *StandardEncoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = e.forward(text)
	}
	return out, nil
}

// EmbedQuery embeds a single query string. The standard encoder has no
// query/document asymmetry, so this is a thin wrapper over Embed.
func (e *StandardEncoder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimensions returns the encoder's hidden size.
func (e *StandardEncoder) Dimensions() int { return e.cfg.HiddenSize }

// Close is a no-op: the encoder holds no external resources.
func (e *StandardEncoder) Close() error { return nil }

func (e *StandardEncoder) forward(text string) []float32 {
	h, mask, hidden := e.encode(text)
	pooled := maskedMeanPool(h, mask, hidden)
	return l2Normalize(pooled)
}

// EmbedTokens returns one L2-normalized vector per token of text, taken
// from the last layer's hidden states before mean-pooling, for
// late-interaction (max-sim) scoring.
func (e *StandardEncoder) EmbedTokens(ctx context.Context, text string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	h, _, _ := e.encode(text)
	out := make([][]float32, len(h))
	for t, tok := range h {
		out[t] = l2Normalize(append([]float32(nil), tok...))
	}
	return out, nil
}

// EmbedQueryTokens is a thin wrapper over EmbedTokens: the standard
// encoder has no query/document asymmetry.
func (e *StandardEncoder) EmbedQueryTokens(ctx context.Context, text string) ([][]float32, error) {
	return e.EmbedTokens(ctx, text)
}

// encode runs the encoder stack over text and returns the final layer's
// per-token hidden states and attention mask, before any pooling.
func (e *StandardEncoder) encode(text string) (h [][]float32, mask []int32, hidden int) {
	ids := e.tokenizer.Encode(text, StandardMaxTokens)
	seqLen := len(ids)
	hidden = e.cfg.HiddenSize

	h = make([][]float32, seqLen)
	for t, id := range ids {
		tok := e.weights.TokenEmbedding[int(id)*hidden : int(id)*hidden+hidden]
		pos := e.weights.PositionEmbedding[t*hidden : t*hidden+hidden]
		h[t] = layerNorm(addVec(tok, pos), e.weights.EmbedLNGamma, e.weights.EmbedLNBeta, e.cfg.LayerNormEps)
	}

	mask = make([]int32, seqLen)
	for i := range mask {
		mask[i] = 1
	}

	for _, layer := range e.weights.Layers {
		h = e.attentionBlock(h, mask, layer)
		h = e.ffnBlock(h, layer)
	}

	return h, mask, hidden
}

// attentionBlock runs bidirectional multi-head self-attention (no
// rotary embeddings, no causal masking) followed by a residual add and
// post-norm, the standard encoder's block ordering.
func (e *StandardEncoder) attentionBlock(h [][]float32, mask []int32, layer Layer) [][]float32 {
	seqLen := len(h)
	hidden := e.cfg.HiddenSize
	numHeads := e.cfg.NumHeads
	headDim := e.cfg.HeadDim()

	q := make([][]float32, seqLen)
	k := make([][]float32, seqLen)
	v := make([][]float32, seqLen)
	for t := 0; t < seqLen; t++ {
		q[t] = matVec(layer.WQ, hidden, hidden, h[t], layer.BQ)
		k[t] = matVec(layer.WK, hidden, hidden, h[t], layer.BK)
		v[t] = matVec(layer.WV, hidden, hidden, h[t], layer.BV)
	}

	out := make([][]float32, seqLen)
	for t := range out {
		out[t] = make([]float32, hidden)
	}

	scale := float32(1.0 / sqrtF(float64(headDim)))
	for head := 0; head < numHeads; head++ {
		lo, hi := head*headDim, head*headDim+headDim
		for i := 0; i < seqLen; i++ {
			scores := make([]float32, seqLen)
			for j := 0; j < seqLen; j++ {
				if mask[j] == 0 {
					scores[j] = -1e9
					continue
				}
				var dot float32
				for d := lo; d < hi; d++ {
					dot += q[i][d] * k[j][d]
				}
				scores[j] = dot * scale
			}
			softmax(scores)
			for d := lo; d < hi; d++ {
				var acc float32
				for j := 0; j < seqLen; j++ {
					acc += scores[j] * v[j][d]
				}
				out[i][d] = acc
			}
		}
	}

	result := make([][]float32, seqLen)
	for t := 0; t < seqLen; t++ {
		proj := matVec(layer.WO, hidden, hidden, out[t], layer.BO)
		result[t] = layerNorm(addVec(h[t], proj), layer.LN1Gamma, layer.LN1Beta, e.cfg.LayerNormEps)
	}
	return result
}

// ffnBlock applies a GELU feed-forward with a residual add and
// post-norm.
func (e *StandardEncoder) ffnBlock(h [][]float32, layer Layer) [][]float32 {
	hidden := e.cfg.HiddenSize
	inter := e.cfg.IntermediateSize

	out := make([][]float32, len(h))
	for t, x := range h {
		mid := matVec(layer.W1, inter, hidden, x, layer.B1)
		for i, v := range mid {
			mid[i] = gelu(v)
		}
		down := matVec(layer.W2, hidden, inter, mid, layer.B2)
		out[t] = layerNorm(addVec(x, down), layer.LN2Gamma, layer.LN2Beta, e.cfg.LayerNormEps)
	}
	return out
}
