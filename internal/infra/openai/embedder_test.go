package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jinford/token-features/internal/core/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	embedder, err := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)
	require.NoError(t, err)

	meta := embedding.MetadataOf(embedder)
	assert.Equal(t, "custom-model", meta.ModelName)
	assert.Equal(t, 42, meta.Dimension)
	assert.Equal(t, embedding.TierRemote, meta.Tier)
	assert.Equal(t, MaxEmbeddingBatch, embedder.MaxBatchSize())
}

func TestNewEmbedderRequiresAPIKey(t *testing.T) {
	_, err := NewEmbedder("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

// embeddingsHandler は最初の failures 回だけ status を返し、以降は入力を逆順の index で返す
func embeddingsHandler(t *testing.T, calls *atomic.Int32, failures int32, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n <= failures {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit","code":"rate_limit"}}`))
			return
		}

		var req struct {
			Input json.RawMessage `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var inputs []string
		if err := json.Unmarshal(req.Input, &inputs); err != nil {
			var single string
			assert.NoError(t, json.Unmarshal(req.Input, &single))
			inputs = []string{single}
		}

		data := make([]map[string]any, 0, len(inputs))
		for i := len(inputs) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(i), 1},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  "test-model",
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}
}

func newTestEmbedder(t *testing.T, url string) *Embedder {
	t.Helper()
	e, err := NewEmbedder("dummy-key",
		WithBaseURL(url+"/"),
		WithEmbeddingDimension(2),
		WithRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)
	return e
}

func TestBatchEmbed_OrdersByIndex(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(embeddingsHandler(t, &calls, 0, 0))
	defer srv.Close()

	got, err := newTestEmbedder(t, srv.URL).BatchEmbed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBatchEmbed_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(embeddingsHandler(t, &calls, 2, http.StatusTooManyRequests))
	defer srv.Close()

	got, err := newTestEmbedder(t, srv.URL).BatchEmbed(context.Background(), []string{"only"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBatchEmbed_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(embeddingsHandler(t, &calls, 10, http.StatusTooManyRequests))
	defer srv.Close()

	_, err := newTestEmbedder(t, srv.URL).BatchEmbed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBatchEmbed_NonRetryableError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(embeddingsHandler(t, &calls, 10, http.StatusBadRequest))
	defer srv.Close()

	_, err := newTestEmbedder(t, srv.URL).BatchEmbed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBatchEmbed_InputValidation(t *testing.T) {
	e, err := NewEmbedder("dummy-key")
	require.NoError(t, err)

	_, err = e.BatchEmbed(context.Background(), nil)
	assert.Error(t, err)

	_, err = e.BatchEmbed(context.Background(), make([]string, MaxEmbeddingBatch+1))
	assert.Error(t, err)
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := defaultRetryPolicy()
	assert.Equal(t, 2*time.Second, p.backoff(1))
	assert.Equal(t, 4*time.Second, p.backoff(2))
	assert.Equal(t, 8*time.Second, p.backoff(3))
	assert.Equal(t, MaxBackoff, p.backoff(10))
}

func TestIsRateLimitError(t *testing.T) {
	assert.False(t, isRateLimitError(nil))
	assert.False(t, isRateLimitError(context.Canceled))
}
