package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	amerr "github.com/RandomsUsernames/sgrep/internal/errors"
)

// RemoteConfig configures a RemoteEngine.
type RemoteConfig struct {
	// Endpoint is the full URL the engine POSTs batches to.
	Endpoint string

	// APIKey is sent as a Bearer token. If it is empty, NewRemoteEngine
	// returns a Config error: spec.md requires a credential to be
	// available before a remote engine is usable.
	APIKey string

	// Dimensions is the vector width the endpoint is expected to return.
	Dimensions int

	// Timeout bounds a single batch request.
	Timeout time.Duration

	// Client, if set, is used instead of constructing a default one.
	// Exposed so tests can inject a client pointed at an httptest server.
	Client *http.Client
}

// RemoteEngine embeds by POSTing batches of text to a configured HTTP
// endpoint and expecting one vector per input string in return.
type RemoteEngine struct {
	cfg    RemoteConfig
	client *http.Client
}

type remoteEmbedRequest struct {
	Input []string `json:"input"`
}

type remoteEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewRemoteEngine validates cfg and constructs a RemoteEngine. It returns a
// Config error if no credential is available.
func NewRemoteEngine(cfg RemoteConfig) (*RemoteEngine, error) {
	if cfg.Endpoint == "" {
		return nil, amerr.ConfigError("remote embedding endpoint not configured", nil)
	}
	if cfg.APIKey == "" {
		return nil, amerr.ConfigError("no credential available for remote embedding provider", nil)
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &RemoteEngine{cfg: cfg, client: client}, nil
}

// Embed posts texts as a single batch and returns one vector per input, in
// order. A transport failure yields a Net error; a non-2xx response yields a
// Remote error carrying the status and body unchanged.
func (e *RemoteEngine) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(remoteEmbedRequest{Input: texts})
	if err != nil {
		return nil, amerr.InternalError("failed to marshal embed request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, amerr.InternalError("failed to build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, amerr.NetError(fmt.Sprintf("remote embed request failed: %v", err), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, amerr.NetError("failed to read remote embed response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, amerr.RemoteError(resp.StatusCode, string(respBody))
	}

	var parsed remoteEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, amerr.InferenceError("remote response was not valid JSON", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, amerr.InvariantError(
			fmt.Sprintf("remote returned %d vectors for %d inputs", len(parsed.Embeddings), len(texts)), nil)
	}
	for _, v := range parsed.Embeddings {
		if hasNonFinite(v) {
			return nil, amerr.InferenceError("remote returned a non-finite vector", nil)
		}
	}

	return parsed.Embeddings, nil
}

// EmbedQuery embeds a single string via Embed.
func (e *RemoteEngine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimensions returns the configured vector width.
func (e *RemoteEngine) Dimensions() int { return e.cfg.Dimensions }

// Close releases the underlying HTTP client's idle connections.
func (e *RemoteEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
