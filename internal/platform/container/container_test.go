package container

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jinford/token-features/internal/core/embedding"
	"github.com/jinford/token-features/internal/core/ingestion"
	"github.com/jinford/token-features/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Features: config.FeatureConfig{
			MaxNumericCardinality: 10,
			NullMarkers:           []string{"None", "null"},
			HashFallback:          true,
			EnvelopeKeys:          []string{"tokens"},
		},
		Embedding: config.EmbeddingConfig{
			Provider:      config.ProviderNone,
			BatchSize:     10,
			HashDimension: 8,
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_WithoutDatabase(t *testing.T) {
	c, err := New(context.Background(), testConfig(), WithContainerLogger(quietLogger()))
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Embedder)
	assert.Nil(t, c.Database)
	assert.Nil(t, c.Store)
	require.NotNil(t, c.Service)

	_, err = c.Service.ListRuns(context.Background(), 1)
	assert.ErrorIs(t, err, ingestion.ErrRepositoryNotConfigured)
}

func TestNew_EmbeddingProviders(t *testing.T) {
	c, err := New(context.Background(), testConfig(),
		WithContainerLogger(quietLogger()),
		WithEmbeddingProvider(config.ProviderHash),
	)
	require.NoError(t, err)
	require.NotNil(t, c.Embedder)
	assert.Equal(t, embedding.TierCPU, c.Embedder.Tier())
	assert.Equal(t, 8, c.Embedder.Dimension())

	_, err = New(context.Background(), testConfig(), WithEmbeddingProvider("quantum"))
	assert.Error(t, err)

	// API キーなしの OpenAI は初期化エラー
	_, err = New(context.Background(), testConfig(), WithEmbeddingProvider(config.ProviderOpenAI))
	assert.Error(t, err)
}

func TestNew_RunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tokens.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"tokens":[
		{"text":"Paris","labels":{"ent":{"value":"LOC","confidence":0.9}}},
		{"text":"is","labels":{"ent":{"value":"None","confidence":0.2}}},
		{"text":"Acme","labels":{"ent":{"value":"ORG","confidence":0.6}}}
	]}`), 0o644))

	c, err := New(context.Background(), testConfig(),
		WithContainerLogger(quietLogger()),
		WithEmbeddingProvider(config.ProviderHash),
	)
	require.NoError(t, err)

	out := filepath.Join(dir, "out")
	res, err := c.Service.Run(context.Background(), ingestion.RunParams{Input: input, OutputDir: out})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Combined.Rows)
	assert.Equal(t, 2+8, res.Combined.Cols)

	// "None" は null として扱われる
	assert.Equal(t, []float64{0, 0}, res.Features.Raw.Row(1))

	assert.FileExists(t, filepath.Join(out, "features.csv"))
	assert.FileExists(t, filepath.Join(out, "metadata.json"))
}
