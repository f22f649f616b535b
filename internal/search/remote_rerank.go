package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	amerr "github.com/RandomsUsernames/sgrep/internal/errors"
)

// DefaultRerankTimeout bounds a single rerank request.
const DefaultRerankTimeout = 30 * time.Second

// RemoteRerankerConfig configures a RemoteReranker.
type RemoteRerankerConfig struct {
	// Endpoint is the full URL the reranker POSTs query/document pairs to.
	Endpoint string

	// APIKey is sent as a Bearer token when non-empty.
	APIKey string

	// Timeout bounds a single rerank request.
	Timeout time.Duration

	// Client, if set, is used instead of constructing a default one.
	// Exposed so tests can inject a client pointed at an httptest server.
	Client *http.Client
}

// RemoteReranker scores query/document pairs by POSTing them to a
// configured cross-encoder HTTP endpoint. It mirrors the request/response
// shape of embed.RemoteEngine: a single batched call, a typed JSON
// envelope, and the same error-category mapping for transport vs.
// application failures.
type RemoteReranker struct {
	cfg    RemoteRerankerConfig
	client *http.Client
}

type remoteRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k,omitempty"`
}

type remoteRerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

type remoteRerankResponse struct {
	Results []remoteRerankResult `json:"results"`
}

// NewRemoteReranker validates cfg and constructs a RemoteReranker.
func NewRemoteReranker(cfg RemoteRerankerConfig) (*RemoteReranker, error) {
	if cfg.Endpoint == "" {
		return nil, amerr.ConfigError("remote reranker endpoint not configured", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRerankTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &RemoteReranker{cfg: cfg, client: client}, nil
}

// NewRemoteRerankerFromEnv builds a RemoteReranker from an endpoint and the
// name of an environment variable holding its API key. Returns nil, nil
// when endpoint is empty — the caller treats that as "not configured"
// rather than an error, since a reranker stage is optional.
func NewRemoteRerankerFromEnv(endpoint, apiKeyEnv string) (*RemoteReranker, error) {
	if endpoint == "" {
		return nil, nil
	}
	apiKey := ""
	if apiKeyEnv != "" {
		apiKey = os.Getenv(apiKeyEnv)
	}
	return NewRemoteReranker(RemoteRerankerConfig{Endpoint: endpoint, APIKey: apiKey})
}

// Rerank posts query and documents as a single batch and maps the returned
// indices back onto RerankResult, sorted by score descending by the
// endpoint itself (the response order is trusted as-is).
func (r *RemoteReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(remoteRerankRequest{Query: query, Documents: documents, TopK: topK})
	if err != nil {
		return nil, amerr.InternalError("failed to marshal rerank request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, amerr.InternalError("failed to build rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, amerr.NetError(fmt.Sprintf("remote rerank request failed: %v", err), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, amerr.NetError("failed to read remote rerank response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, amerr.RemoteError(resp.StatusCode, string(respBody))
	}

	var parsed remoteRerankResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, amerr.InferenceError("remote rerank response was not valid JSON", err)
	}

	out := make([]RerankResult, 0, len(parsed.Results))
	for _, rr := range parsed.Results {
		if rr.Index < 0 || rr.Index >= len(documents) {
			continue
		}
		out = append(out, RerankResult{Index: rr.Index, Score: rr.Score, Document: documents[rr.Index]})
	}

	if topK > 0 && topK < len(out) {
		out = out[:topK]
	}

	return out, nil
}

// Available performs a cheap reachability check against the endpoint's
// host by attempting a HEAD request; any response (even an error status)
// counts as available, since the endpoint may not implement HEAD.
func (r *RemoteReranker) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.cfg.Endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return true
}

// Close releases the underlying HTTP client's idle connections.
func (r *RemoteReranker) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

var _ Reranker = (*RemoteReranker)(nil)
