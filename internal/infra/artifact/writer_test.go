package artifact

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/token-features/internal/core/features"
	"github.com/jinford/token-features/internal/core/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extract(t *testing.T) ([]features.Token, *features.Result) {
	t.Helper()
	tokens := []features.Token{
		{Text: "Paris", Labels: map[string]features.LabelAnnotation{"ent": {Value: features.String("LOC"), Confidence: 0.9}}},
		{Text: "a,b", Labels: map[string]features.LabelAnnotation{"ent": {Value: features.Null(), Confidence: 0}}},
		{Text: "Acme", Labels: map[string]features.LabelAnnotation{"ent": {Value: features.String("ORG"), Confidence: 0.5}}},
	}
	res, err := features.Extract(tokens, features.DefaultOptions())
	require.NoError(t, err)
	return tokens, res
}

func runFor(res *features.Result, n int) *ingestion.Run {
	return &ingestion.Run{
		ID:           uuid.New(),
		Name:         "test",
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FeatureNames: res.Names,
		LabelWidth:   res.Matrix.Cols,
		HashVersion:  features.HashVersion,
		Encoding:     res.Encoding,
		Schema:       res.Schema,
		Encoders:     res.Encoders,
		Report:       res.Report,
		TokenCount:   n,
	}
}

func TestWriter_Write(t *testing.T) {
	tokens, res := extract(t)
	run := runFor(res, len(tokens))
	dir := filepath.Join(t.TempDir(), "out")

	require.NoError(t, NewWriter().Write(dir, run, tokens, res.Matrix))

	f, err := os.Open(filepath.Join(dir, FeaturesFileName))
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"text", "ent_value", "ent_confidence"}, records[0])
	assert.Equal(t, "a,b", records[2][0])
	assert.Equal(t, []string{"0", "0"}, records[2][1:], "null の行は 0 のまま")

	meta, err := ReadMetadata(filepath.Join(dir, MetadataFileName))
	require.NoError(t, err)
	assert.Equal(t, run.ID.String(), meta.RunID)
	assert.Equal(t, res.Names, meta.FeatureNames)
	assert.True(t, run.CreatedAt.Equal(meta.CreatedAt))

	// 保存したエンコーディングで再変換すると同じ行列になる
	again, err := meta.Fitted(features.DefaultOptions()).Transform(tokens)
	require.NoError(t, err)
	assert.Equal(t, res.Matrix.Data, again.Matrix.Data)
}

func TestMetadata_FittedKeepsSavedEncoding(t *testing.T) {
	tokens := []features.Token{
		{Text: "a", Labels: map[string]features.LabelAnnotation{"score": {Value: features.String("red"), Confidence: 0.5}}},
		{Text: "b", Labels: map[string]features.LabelAnnotation{"score": {Value: features.Number(2), Confidence: 0.5}}},
	}
	opts := features.DefaultOptions()
	opts.HashFallback = false
	opts.NullMarkers = []string{"N/A"}
	res, err := features.Extract(tokens, opts)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0.5}, res.Raw.Row(0))

	dir := t.TempDir()
	require.NoError(t, NewWriter().Write(dir, runFor(res, len(tokens)), tokens, res.Matrix))

	meta, err := ReadMetadata(filepath.Join(dir, MetadataFileName))
	require.NoError(t, err)
	require.NotNil(t, meta.Encoding)
	assert.False(t, meta.Encoding.HashFallback)
	assert.Equal(t, []string{"N/A"}, meta.Encoding.NullMarkers)

	// 現在の設定がデフォルトでも fit 時と同じ値になる
	again, err := meta.Fitted(features.DefaultOptions()).Transform(tokens)
	require.NoError(t, err)
	assert.Equal(t, res.Raw.Data, again.Raw.Data)
	assert.Equal(t, res.Matrix.Data, again.Matrix.Data)
}

func TestWriter_Write_Mismatch(t *testing.T) {
	tokens, res := extract(t)
	run := runFor(res, len(tokens))

	err := NewWriter().Write(t.TempDir(), run, tokens[:2], res.Matrix)
	assert.ErrorIs(t, err, features.ErrRowCountMismatch)

	run.FeatureNames = run.FeatureNames[:1]
	err = NewWriter().Write(t.TempDir(), run, tokens, res.Matrix)
	assert.Error(t, err)
}

func TestReadMetadata_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadMetadata(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(dir, MetadataFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"run_id":"x","hash_version":"fnv1a64-v1"}`), 0o644))
	_, err = ReadMetadata(path)
	assert.Error(t, err)

	// エンコーディング設定のないメタデータは再利用できない
	require.NoError(t, os.WriteFile(path, []byte(`{"schema":[],"encoders":{},"hash_version":"fnv1a64-v1"}`), 0o644))
	_, err = ReadMetadata(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"schema":[],"encoders":{},"encoding":{"null_markers":[],"hash_fallback":true},"hash_version":"md5"}`), 0o644))
	_, err = ReadMetadata(path)
	assert.Error(t, err)
}
