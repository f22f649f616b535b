package transformer

import (
	"context"
	"sync"
)

// RotaryEncoder is the rotary-position, SwiGLU feed-forward encoder:
// no learned position embeddings (position is injected into attention
// via rotation), post-norm blocks, 8192-token context. Queries are
// prefixed with QueryPrefix before tokenization to match the model's
// training-time asymmetry between queries and documents.
type RotaryEncoder struct {
	cfg       Config
	weights   *Weights
	tokenizer *Tokenizer
	mu        sync.Mutex
}

// NewRotaryEncoder constructs a RotaryEncoder from an explicit
// config/weights/tokenizer triple.
func NewRotaryEncoder(cfg Config, weights *Weights, tokenizer *Tokenizer) *RotaryEncoder {
	return &RotaryEncoder{cfg: cfg, weights: weights, tokenizer: tokenizer}
}

// Embed returns one unit vector of cfg.HiddenSize dimensions (768 for
// RotaryConfig) per input string, treating all inputs as documents (no
// query prefix).
func (e *RotaryEncoder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
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

// EmbedQuery prepends QueryPrefix before embedding, matching the
// encoder's training-time query/document asymmetry.
func (e *RotaryEncoder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{QueryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimensions returns the encoder's hidden size.
func (e *RotaryEncoder) Dimensions() int { return e.cfg.HiddenSize }

// Close is a no-op: the encoder holds no external resources.
func (e *RotaryEncoder) Close() error { return nil }

func (e *RotaryEncoder) forward(text string) []float32 {
	h, mask, hidden := e.encode(text)
	pooled := maskedMeanPool(h, mask, hidden)
	return l2Normalize(pooled)
}

// EmbedTokens returns one L2-normalized vector per token of text, taken
// from the last layer's hidden states before mean-pooling, for
// late-interaction (max-sim) scoring.
func (e *RotaryEncoder) EmbedTokens(ctx context.Context, text string) ([][]float32, error) {
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

// EmbedQueryTokens prepends QueryPrefix before returning per-token
// embeddings, matching EmbedQuery's query/document asymmetry.
func (e *RotaryEncoder) EmbedQueryTokens(ctx context.Context, text string) ([][]float32, error) {
	return e.EmbedTokens(ctx, QueryPrefix+text)
}

// encode runs the encoder stack over text and returns the final layer's
// per-token hidden states and attention mask, before any pooling.
func (e *RotaryEncoder) encode(text string) (h [][]float32, mask []int32, hidden int) {
	ids := e.tokenizer.Encode(text, RotaryMaxTokens)
	seqLen := len(ids)
	hidden = e.cfg.HiddenSize

	h = make([][]float32, seqLen)
	for t, id := range ids {
		tok := e.weights.TokenEmbedding[int(id)*hidden : int(id)*hidden+hidden]
		h[t] = layerNorm(tok, e.weights.EmbedLNGamma, e.weights.EmbedLNBeta, e.cfg.LayerNormEps)
	}

	mask = make([]int32, seqLen)
	for i := range mask {
		mask[i] = 1
	}

	rotaryDims := int(float32(e.cfg.HeadDim()) * e.cfg.RotaryFraction)

	for _, layer := range e.weights.Layers {
		h = e.attentionBlock(h, mask, layer, rotaryDims)
		h = e.swiGLUBlock(h, layer)
	}

	return h, mask, hidden
}

// attentionBlock runs multi-head self-attention with a partial rotary
// embedding applied to queries and keys (the first rotaryDims elements
// of each head rotated, the remainder passing through unchanged) and
// an additive attention mask — a large negative bias added to ignored
// positions' scores before softmax.
func (e *RotaryEncoder) attentionBlock(h [][]float32, mask []int32, layer Layer, rotaryDims int) [][]float32 {
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

		for head := 0; head < numHeads; head++ {
			lo, hi := head*headDim, head*headDim+headDim
			rotatedQ := applyRotary(q[t][lo:hi], t, rotaryDims)
			rotatedK := applyRotary(k[t][lo:hi], t, rotaryDims)
			copy(q[t][lo:hi], rotatedQ)
			copy(k[t][lo:hi], rotatedK)
		}
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
				var dot float32
				for d := lo; d < hi; d++ {
					dot += q[i][d] * k[j][d]
				}
				scores[j] = dot * scale
				if mask[j] == 0 {
					scores[j] += -1e9
				}
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

// swiGLUBlock applies a SwiGLU feed-forward (separate gate and value
// projections, gate passed through SiLU and multiplied elementwise
// into value before the down-projection) with a residual add and
// post-norm.
func (e *RotaryEncoder) swiGLUBlock(h [][]float32, layer Layer) [][]float32 {
	hidden := e.cfg.HiddenSize
	inter := e.cfg.IntermediateSize

	out := make([][]float32, len(h))
	for t, x := range h {
		gate := matVec(layer.WGate, inter, hidden, x, nil)
		value := matVec(layer.WValue, inter, hidden, x, nil)
		for i := range gate {
			gate[i] = silu(gate[i]) * value[i]
		}
		down := matVec(layer.WDown, hidden, inter, gate, nil)
		out[t] = layerNorm(addVec(x, down), layer.LN2Gamma, layer.LN2Beta, e.cfg.LayerNormEps)
	}
	return out
}
