package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/token-features/internal/core/features"
	"github.com/jinford/token-features/internal/core/ingestion"
	"github.com/jinford/token-features/internal/platform/database"
)

// startPostgres は pgvector 入りの PostgreSQL コンテナを起動する
// Docker が使えない環境ではテストをスキップする
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if os.Getenv("SKIP_DOCKER_TESTS") != "" {
		t.Skip("SKIP_DOCKER_TESTS is set")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not available: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "pgvector/pgvector",
		Tag:        "pg16",
		Env: []string{
			"POSTGRES_USER=features",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=features",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })
	_ = resource.Expire(120)

	params := database.ConnectionParams{
		Host:     "localhost",
		User:     "features",
		Password: "secret",
		DBName:   "features",
		SSLMode:  "disable",
	}
	_, err = fmt.Sscanf(resource.GetPort("5432/tcp"), "%d", &params.Port)
	require.NoError(t, err)

	var db *database.DB
	pool.MaxWait = 60 * time.Second
	err = pool.Retry(func() error {
		var connErr error
		db, connErr = database.New(context.Background(), params)
		return connErr
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db.Pool
}

func sampleRun(t *testing.T) (*ingestion.Run, []ingestion.Row) {
	t.Helper()
	tokens := []features.Token{
		{Text: "Paris", Labels: map[string]features.LabelAnnotation{"ent": {Value: features.String("LOC"), Confidence: 0.9}}},
		{Text: "is", Labels: map[string]features.LabelAnnotation{"ent": {Value: features.Null(), Confidence: 0}}},
		{Text: "Lyon", Labels: map[string]features.LabelAnnotation{"ent": {Value: features.String("LOC"), Confidence: 0.8}}},
		{Text: "Acme", Labels: map[string]features.LabelAnnotation{"ent": {Value: features.String("ORG"), Confidence: 0.7}}},
	}
	res, err := features.Extract(tokens, features.DefaultOptions())
	require.NoError(t, err)

	run := &ingestion.Run{
		ID:           uuid.New(),
		Name:         "sample",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		FeatureNames: res.Names,
		LabelWidth:   res.Matrix.Cols,
		HashVersion:  features.HashVersion,
		Encoding:     res.Encoding,
		Schema:       res.Schema,
		Encoders:     res.Encoders,
		Report:       res.Report,
		TokenCount:   len(tokens),
		Files:        []string{"sample.json"},
	}

	rows := make([]ingestion.Row, len(tokens))
	for i := range tokens {
		vec := make([]float32, res.Matrix.Cols)
		for j, v := range res.Matrix.Row(i) {
			vec[j] = float32(v)
		}
		rows[i] = ingestion.Row{Ordinal: i, Text: tokens[i].Text, Vector: vec}
	}
	// 全列が 0 の行は NULL として保存される
	rows[1].Vector = nil
	return run, rows
}

func TestFeatureStore_Integration(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	store := NewFeatureStore(pool)
	require.NoError(t, store.Migrate(ctx))
	// 2回目も成功する
	require.NoError(t, store.Migrate(ctx))

	run, rows := sampleRun(t)
	require.NoError(t, store.SaveRun(ctx, run, rows))

	t.Run("重複保存はエラー", func(t *testing.T) {
		err := store.SaveRun(ctx, run, rows)
		assert.ErrorIs(t, err, ingestion.ErrRunAlreadyExists)
	})

	t.Run("GetRun", func(t *testing.T) {
		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.Name, got.Name)
		assert.Equal(t, run.FeatureNames, got.FeatureNames)
		assert.Equal(t, run.Schema.LabelTypes(), got.Schema.LabelTypes())
		assert.Equal(t, run.Encoders.LabelTypes(), got.Encoders.LabelTypes())
		assert.Equal(t, run.Report.Tokens, got.Report.Tokens)
		assert.Equal(t, []string{"sample.json"}, got.Files)
		assert.Equal(t, run.Encoding, got.Encoding)
		assert.Empty(t, got.EmbeddingModel)
		assert.True(t, run.CreatedAt.Equal(got.CreatedAt))

		// 復元したエンコーディングで同じ特徴が得られる
		decoded, err := got.Encoders.Decode("ent", 1)
		require.NoError(t, err)
		assert.Equal(t, "ORG", decoded)

		_, err = store.GetRun(ctx, uuid.New())
		assert.ErrorIs(t, err, ingestion.ErrRunNotFound)
	})

	t.Run("ListRuns", func(t *testing.T) {
		summaries, err := store.ListRuns(ctx, 0)
		require.NoError(t, err)
		require.NotEmpty(t, summaries)
		assert.Equal(t, run.ID, summaries[0].ID)
		assert.Equal(t, run.LabelWidth, summaries[0].Width)
	})

	t.Run("GetRow", func(t *testing.T) {
		row, err := store.GetRow(ctx, run.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, "Paris", row.Text)
		assert.InDeltaSlice(t, rows[0].Vector, row.Vector, 1e-6)

		nullRow, err := store.GetRow(ctx, run.ID, 1)
		require.NoError(t, err)
		assert.Empty(t, nullRow.Vector)

		_, err = store.GetRow(ctx, run.ID, 42)
		assert.ErrorIs(t, err, ingestion.ErrRowNotFound)
	})

	t.Run("SearchSimilar", func(t *testing.T) {
		results, err := store.SearchSimilar(ctx, run.ID, rows[0].Vector, 10)
		require.NoError(t, err)
		require.Len(t, results, 3, "NULL の行は検索対象外")
		assert.Equal(t, 0, results[0].Ordinal)
		assert.InDelta(t, 0, results[0].Distance, 1e-6)

		empty, err := store.SearchSimilar(ctx, run.ID, nil, 10)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
