package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRemoteReranker_EmptyEndpoint_ReturnsConfigError(t *testing.T) {
	_, err := NewRemoteReranker(RemoteRerankerConfig{})

	require.Error(t, err)
}

func TestNewRemoteRerankerFromEnv_EmptyEndpoint_ReturnsNilNil(t *testing.T) {
	reranker, err := NewRemoteRerankerFromEnv("", "SOME_KEY_ENV")

	require.NoError(t, err)
	assert.Nil(t, reranker)
}

func TestRemoteReranker_Rerank_MapsIndicesBackToDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteRerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "parse json", req.Query)
		assert.Len(t, req.Documents, 3)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(remoteRerankResponse{
			Results: []remoteRerankResult{
				{Index: 2, Score: 0.9},
				{Index: 0, Score: 0.5},
				{Index: 1, Score: 0.1},
			},
		})
	}))
	defer server.Close()

	reranker, err := NewRemoteReranker(RemoteRerankerConfig{Endpoint: server.URL})
	require.NoError(t, err)
	defer reranker.Close()

	docs := []string{"doc a", "doc b", "doc c"}
	results, err := reranker.Rerank(context.Background(), "parse json", docs, 0)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 2, results[0].Index)
	assert.Equal(t, "doc c", results[0].Document)
	assert.Equal(t, 0.9, results[0].Score)
}

func TestRemoteReranker_Rerank_RespectsTopK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(remoteRerankResponse{
			Results: []remoteRerankResult{
				{Index: 0, Score: 0.9},
				{Index: 1, Score: 0.8},
				{Index: 2, Score: 0.7},
			},
		})
	}))
	defer server.Close()

	reranker, err := NewRemoteReranker(RemoteRerankerConfig{Endpoint: server.URL})
	require.NoError(t, err)
	defer reranker.Close()

	results, err := reranker.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 1)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Index)
}

func TestRemoteReranker_Rerank_NonOKStatus_ReturnsRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	reranker, err := NewRemoteReranker(RemoteRerankerConfig{Endpoint: server.URL})
	require.NoError(t, err)
	defer reranker.Close()

	_, err = reranker.Rerank(context.Background(), "q", []string{"a"}, 0)

	require.Error(t, err)
}

func TestRemoteReranker_Rerank_EmptyDocuments_ReturnsNil(t *testing.T) {
	reranker, err := NewRemoteReranker(RemoteRerankerConfig{Endpoint: "http://example.invalid"})
	require.NoError(t, err)
	defer reranker.Close()

	results, err := reranker.Rerank(context.Background(), "q", nil, 0)

	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestRemoteReranker_Available_ReachableServer_ReturnsTrue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	reranker, err := NewRemoteReranker(RemoteRerankerConfig{Endpoint: server.URL})
	require.NoError(t, err)
	defer reranker.Close()

	assert.True(t, reranker.Available(context.Background()))
}

func TestRemoteReranker_Available_UnreachableServer_ReturnsFalse(t *testing.T) {
	reranker, err := NewRemoteReranker(RemoteRerankerConfig{Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)
	defer reranker.Close()

	assert.False(t, reranker.Available(context.Background()))
}
