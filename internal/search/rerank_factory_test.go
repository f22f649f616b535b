package search

import (
	"testing"

	"github.com/RandomsUsernames/sgrep/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChain_NoEndpoints_ReturnsEmptyChain(t *testing.T) {
	chain, err := NewChain(config.RerankConfig{})

	require.NoError(t, err)
	assert.Nil(t, chain.Primary)
	assert.Nil(t, chain.Secondary)
}

func TestNewChain_BothEndpoints_WiresBothStages(t *testing.T) {
	chain, err := NewChain(config.RerankConfig{
		PrimaryEndpoint:   "http://primary.invalid/rerank",
		SecondaryEndpoint: "http://secondary.invalid/rerank",
	})

	require.NoError(t, err)
	require.NotNil(t, chain.Primary)
	require.NotNil(t, chain.Secondary)
}
