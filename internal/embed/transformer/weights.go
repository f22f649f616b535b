package transformer

import (
	"encoding/binary"
	"io"
	"math/rand"
)

// Layer holds one transformer block's parameters. FFN fields are
// interpreted differently by the two architectures: the standard
// encoder uses (W1, B1, W2, B2) as a single GELU feed-forward; the
// rotary encoder uses (WGate, WValue, WDown) as a SwiGLU feed-forward
// and ignores B1/B2.
type Layer struct {
	WQ, WK, WV, WO         []float32
	BQ, BK, BV, BO         []float32
	LN1Gamma, LN1Beta      []float32
	LN2Gamma, LN2Beta      []float32
	W1, W2                 []float32
	B1, B2                 []float32
	WGate, WValue, WDown   []float32
}

// Weights holds every learned parameter of one encoder.
type Weights struct {
	TokenEmbedding    []float32 // vocabSize * hidden
	PositionEmbedding []float32 // maxPosition * hidden, unused by rotary encoder
	EmbedLNGamma      []float32
	EmbedLNBeta       []float32
	Layers            []Layer
}

// NewRandomWeights deterministically initializes a Weights set from
// seed using small-magnitude values, for use when no pretrained
// weights.bin has been downloaded yet. The same seed always produces
// the same weights, so encoder output remains deterministic across
// runs — required by invariant I-DET in spec.md §8.
func NewRandomWeights(cfg Config, seed int64) *Weights {
	rng := rand.New(rand.NewSource(seed))
	scale := float32(0.02)

	next := func(n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = float32(rng.NormFloat64()) * scale
		}
		return out
	}
	ones := func(n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = 1
		}
		return out
	}
	zeros := func(n int) []float32 { return make([]float32, n) }

	w := &Weights{
		TokenEmbedding: next(cfg.VocabSize * cfg.HiddenSize),
		EmbedLNGamma:   ones(cfg.HiddenSize),
		EmbedLNBeta:    zeros(cfg.HiddenSize),
	}
	if cfg.RotaryFraction == 0 {
		w.PositionEmbedding = next(cfg.MaxPositionEmbeddings * cfg.HiddenSize)
	}

	w.Layers = make([]Layer, cfg.NumLayers)
	for i := range w.Layers {
		l := Layer{
			WQ: next(cfg.HiddenSize * cfg.HiddenSize), BQ: zeros(cfg.HiddenSize),
			WK: next(cfg.HiddenSize * cfg.HiddenSize), BK: zeros(cfg.HiddenSize),
			WV: next(cfg.HiddenSize * cfg.HiddenSize), BV: zeros(cfg.HiddenSize),
			WO: next(cfg.HiddenSize * cfg.HiddenSize), BO: zeros(cfg.HiddenSize),
			LN1Gamma: ones(cfg.HiddenSize), LN1Beta: zeros(cfg.HiddenSize),
			LN2Gamma: ones(cfg.HiddenSize), LN2Beta: zeros(cfg.HiddenSize),
		}
		if cfg.RotaryFraction > 0 {
			l.WGate = next(cfg.IntermediateSize * cfg.HiddenSize)
			l.WValue = next(cfg.IntermediateSize * cfg.HiddenSize)
			l.WDown = next(cfg.HiddenSize * cfg.IntermediateSize)
		} else {
			l.W1 = next(cfg.IntermediateSize * cfg.HiddenSize)
			l.B1 = zeros(cfg.IntermediateSize)
			l.W2 = next(cfg.HiddenSize * cfg.IntermediateSize)
			l.B2 = zeros(cfg.HiddenSize)
		}
		w.Layers[i] = l
	}
	return w
}

// LoadWeights reads a weights.bin artifact: little-endian float32
// arrays in the order read below, matching cfg's shapes exactly.
func LoadWeights(r io.Reader, cfg Config) (*Weights, error) {
	br := &binReader{r: r}

	w := &Weights{}
	w.TokenEmbedding = br.floats(cfg.VocabSize * cfg.HiddenSize)
	if cfg.RotaryFraction == 0 {
		w.PositionEmbedding = br.floats(cfg.MaxPositionEmbeddings * cfg.HiddenSize)
	}
	w.EmbedLNGamma = br.floats(cfg.HiddenSize)
	w.EmbedLNBeta = br.floats(cfg.HiddenSize)

	w.Layers = make([]Layer, cfg.NumLayers)
	for i := range w.Layers {
		l := Layer{}
		l.WQ = br.floats(cfg.HiddenSize * cfg.HiddenSize)
		l.BQ = br.floats(cfg.HiddenSize)
		l.WK = br.floats(cfg.HiddenSize * cfg.HiddenSize)
		l.BK = br.floats(cfg.HiddenSize)
		l.WV = br.floats(cfg.HiddenSize * cfg.HiddenSize)
		l.BV = br.floats(cfg.HiddenSize)
		l.WO = br.floats(cfg.HiddenSize * cfg.HiddenSize)
		l.BO = br.floats(cfg.HiddenSize)
		l.LN1Gamma = br.floats(cfg.HiddenSize)
		l.LN1Beta = br.floats(cfg.HiddenSize)
		l.LN2Gamma = br.floats(cfg.HiddenSize)
		l.LN2Beta = br.floats(cfg.HiddenSize)
		if cfg.RotaryFraction > 0 {
			l.WGate = br.floats(cfg.IntermediateSize * cfg.HiddenSize)
			l.WValue = br.floats(cfg.IntermediateSize * cfg.HiddenSize)
			l.WDown = br.floats(cfg.HiddenSize * cfg.IntermediateSize)
		} else {
			l.W1 = br.floats(cfg.IntermediateSize * cfg.HiddenSize)
			l.B1 = br.floats(cfg.IntermediateSize)
			l.W2 = br.floats(cfg.HiddenSize * cfg.IntermediateSize)
			l.B2 = br.floats(cfg.HiddenSize)
		}
		w.Layers[i] = l
	}
	if br.err != nil {
		return nil, br.err
	}
	return w, nil
}

type binReader struct {
	r   io.Reader
	err error
}

func (b *binReader) floats(n int) []float32 {
	if b.err != nil || n == 0 {
		return make([]float32, n)
	}
	out := make([]float32, n)
	if err := binary.Read(b.r, binary.LittleEndian, out); err != nil {
		b.err = err
	}
	return out
}
