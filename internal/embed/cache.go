package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	amerr "github.com/RandomsUsernames/sgrep/internal/errors"
)

// DefaultEmbeddingCacheSize is the default number of query embeddings to
// cache. At 768 dimensions * 4 bytes * 1000 entries, roughly 3MB of memory.
const DefaultEmbeddingCacheSize = 1000

// CachedEngine wraps an Engine with an LRU cache over EmbedQuery, the call
// HybridSearcher makes once per incoming query. Embed (batch, index-time) is
// passed straight through, since indexing rarely repeats the same chunk text.
type CachedEngine struct {
	inner Engine
	cache *lru.Cache[string, []float32]
}

// NewCachedEngine wraps inner with an LRU query cache of the given size.
func NewCachedEngine(inner Engine, cacheSize int) *CachedEngine {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEngine{inner: inner, cache: cache}
}

func (c *CachedEngine) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// Embed passes through to the inner engine uncached.
func (c *CachedEngine) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.Embed(ctx, texts)
}

// EmbedQuery returns a cached vector when the exact query text has been seen
// before, otherwise computes and caches it.
func (c *CachedEngine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedQueryTokens passes through to the inner engine uncached, if it
// supports per-token query embedding.
func (c *CachedEngine) EmbedQueryTokens(ctx context.Context, query string) ([][]float32, error) {
	te, ok := TokenQueryEmbedderOf(c.inner)
	if !ok {
		return nil, amerr.ConfigError("engine does not support token-level query embeddings", nil)
	}
	return te.EmbedQueryTokens(ctx, query)
}

// Dimensions passes through to the inner engine.
func (c *CachedEngine) Dimensions() int { return c.inner.Dimensions() }

// Close closes the inner engine.
func (c *CachedEngine) Close() error { return c.inner.Close() }

// Inner returns the wrapped engine.
func (c *CachedEngine) Inner() Engine { return c.inner }
