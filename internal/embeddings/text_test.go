package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedSuccess(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "some text", req.Prompt)

		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	})

	embedder := NewTextEmbedder(srv.URL, "nomic-embed-text", 3, time.Second)

	vec, err := embedder.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec.Slice())
}

func TestEmbedTrimsAndRejectsEmptyText(t *testing.T) {
	embedder := NewTextEmbedder("http://unused", "m", 3, time.Second)

	_, err := embedder.Embed(context.Background(), "   \n ")
	assert.Error(t, err)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2}})
	})

	embedder := NewTextEmbedder(srv.URL, "m", 3, time.Second)

	_, err := embedder.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestEmbedAPIError(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	embedder := NewTextEmbedder(srv.URL, "m", 3, time.Second)

	_, err := embedder.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestEmbedEmptyEmbedding(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}})
	})

	embedder := NewTextEmbedder(srv.URL, "m", 3, time.Second)

	_, err := embedder.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func TestNewTextEmbedderDefaults(t *testing.T) {
	embedder := NewTextEmbedder("", "", 0, 0)
	assert.Equal(t, 768, embedder.Dimensions())
}
