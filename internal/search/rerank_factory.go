package search

import "github.com/RandomsUsernames/sgrep/internal/config"

// NewChain builds a Chain from cfg, wiring a primary and secondary
// RemoteReranker when their endpoints are configured. Either or both may be
// nil; Chain.Rerank falls back to the local keyword-overlap heuristic once
// no configured stage is available.
func NewChain(cfg config.RerankConfig) (*Chain, error) {
	primary, err := NewRemoteRerankerFromEnv(cfg.PrimaryEndpoint, cfg.PrimaryAPIKeyEnv)
	if err != nil {
		return nil, err
	}
	secondary, err := NewRemoteRerankerFromEnv(cfg.SecondaryEndpoint, cfg.SecondaryAPIKeyEnv)
	if err != nil {
		return nil, err
	}

	chain := &Chain{}
	if primary != nil {
		chain.Primary = primary
	}
	if secondary != nil {
		chain.Secondary = secondary
	}
	return chain, nil
}
