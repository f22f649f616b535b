// Package transformer implements the two local EmbeddingEngine
// architectures in pure Go: a standard bidirectional encoder with
// learned position embeddings, and a rotary-position encoder with a
// SwiGLU feed-forward block. Both share a WordPiece-style tokenizer and
// a mask-weighted mean-pool + L2-normalize tail.
package transformer

import "encoding/json"

// Config describes one encoder's architecture hyperparameters, loaded
// from a model's config.json.
type Config struct {
	VocabSize             int     `json:"vocab_size"`
	HiddenSize            int     `json:"hidden_size"`
	NumLayers             int     `json:"num_layers"`
	NumHeads              int     `json:"num_heads"`
	IntermediateSize      int     `json:"intermediate_size"`
	MaxPositionEmbeddings int     `json:"max_position_embeddings"`
	LayerNormEps          float32 `json:"layer_norm_eps"`

	// RotaryFraction is the fraction of each attention head's dimensions
	// rotated by the rotary position embedding; the remainder passes
	// through unrotated. Zero for the standard encoder.
	RotaryFraction float32 `json:"rotary_fraction"`
}

// ParseConfig decodes a config.json payload.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// StandardConfig returns the standard bidirectional encoder's
// architecture: 768-dim, 512-token context, learned position
// embeddings, GELU feed-forward.
func StandardConfig() Config {
	return Config{
		VocabSize:             30522,
		HiddenSize:            768,
		NumLayers:             12,
		NumHeads:              12,
		IntermediateSize:      3072,
		MaxPositionEmbeddings: 512,
		LayerNormEps:          1e-12,
		RotaryFraction:        0,
	}
}

// RotaryConfig returns the rotary-position, SwiGLU feed-forward
// encoder's architecture: 768-dim, 8192-token context.
func RotaryConfig() Config {
	return Config{
		VocabSize:             50368,
		HiddenSize:            768,
		NumLayers:             12,
		NumHeads:              12,
		IntermediateSize:      2048,
		MaxPositionEmbeddings: 8192,
		LayerNormEps:          1e-5,
		RotaryFraction:        0.5,
	}
}

// HeadDim returns the per-head dimensionality.
func (c Config) HeadDim() int {
	return c.HiddenSize / c.NumHeads
}
