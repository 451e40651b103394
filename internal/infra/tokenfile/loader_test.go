package tokenfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jinford/token-features/internal/core/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleArray = `[
  {"text": "Paris", "labels": {"ent": {"value": "LOC", "confidence": 0.9}, "len": {"value": 5, "confidence": 1}}},
  {"text": "is", "labels": {"ent": {"value": null, "confidence": 0}, "len": {"value": 2.50, "confidence": 1}}}
]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDecode_Array(t *testing.T) {
	tokens, err := NewLoader().Decode(strings.NewReader(sampleArray))
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	assert.Equal(t, "Paris", tokens[0].Text)
	assert.Equal(t, "LOC", tokens[0].Labels["ent"].Value.Text())
	assert.InDelta(t, 0.9, tokens[0].Labels["ent"].Confidence, 1e-12)
	assert.True(t, tokens[1].Labels["ent"].Value.IsNull())

	// 数値リテラルは元の表記を保つ
	assert.Equal(t, features.KindNumber, tokens[1].Labels["len"].Value.Kind())
	assert.Equal(t, "2.50", tokens[1].Labels["len"].Value.Text())
}

func TestDecode_Envelope(t *testing.T) {
	t.Run("デフォルトキー", func(t *testing.T) {
		tokens, err := NewLoader().Decode(strings.NewReader(`{"doc": "x", "tokens": ` + sampleArray + `}`))
		require.NoError(t, err)
		assert.Len(t, tokens, 2)
	})

	t.Run("カスタムキー", func(t *testing.T) {
		l := NewLoader(WithEnvelopeKeys("items", "tokens"))
		tokens, err := l.Decode(strings.NewReader(`{"items": ` + sampleArray + `}`))
		require.NoError(t, err)
		assert.Len(t, tokens, 2)
	})

	t.Run("不明なエンベロープ", func(t *testing.T) {
		_, err := NewLoader().Decode(strings.NewReader(`{"rows": []}`))
		assert.ErrorIs(t, err, ErrUnknownEnvelope)
	})

	t.Run("スカラー", func(t *testing.T) {
		_, err := NewLoader().Decode(strings.NewReader(`42`))
		assert.ErrorIs(t, err, ErrUnknownEnvelope)
	})
}

func TestDecode_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "  \n", "[]", "null"} {
		if input == "null" {
			_, err := NewLoader().Decode(strings.NewReader(input))
			assert.Error(t, err)
			continue
		}
		tokens, err := NewLoader().Decode(strings.NewReader(input))
		require.NoError(t, err, "input %q", input)
		assert.Empty(t, tokens)
	}
}

func TestDecode_InvalidValue(t *testing.T) {
	_, err := NewLoader().Decode(strings.NewReader(`[{"text":"a","labels":{"x":{"value":[1,2],"confidence":1}}}]`))
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.json"), `[{"text":"b","labels":{}}]`)
	writeFile(t, filepath.Join(dir, "a.json"), `{"tokens":[{"text":"a1","labels":{}},{"text":"a2","labels":{}}]}`)
	writeFile(t, filepath.Join(dir, "nested", "c.json"), `[{"text":"c","labels":{}}]`)
	writeFile(t, filepath.Join(dir, "skip", "d.json"), `[{"text":"d","labels":{}}]`)
	writeFile(t, filepath.Join(dir, "e.draft.json"), `[{"text":"e","labels":{}}]`)
	writeFile(t, filepath.Join(dir, "notes.txt"), `not json`)
	writeFile(t, filepath.Join(dir, IgnoreFileName), "# drafts\nskip\n*.draft.json\n")

	tokens, files, err := NewLoader().LoadDir(dir)
	require.NoError(t, err)

	texts := make([]string, len(tokens))
	for i, tok := range tokens {
		texts[i] = tok.Text
	}
	assert.Equal(t, []string{"a1", "a2", "b", "c"}, texts)
	assert.Len(t, files, 3)
}

func TestLoadDir_NoFiles(t *testing.T) {
	_, _, err := NewLoader().LoadDir(t.TempDir())
	assert.ErrorIs(t, err, ErrNoTokenFiles)
}

func TestLoad_FileAndDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one.json")
	writeFile(t, path, sampleArray)

	tokens, files, err := NewLoader().Load(path)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
	assert.Equal(t, []string{path}, files)

	tokens, _, err = NewLoader().Load(dir)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)

	_, _, err = NewLoader().Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestIgnoreFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, IgnoreFileName), "\n# comment\nold\n")

	f, err := NewIgnoreFilter(dir)
	require.NoError(t, err)

	assert.True(t, f.ShouldIgnore("old/x.json"))
	assert.True(t, f.ShouldIgnore(".git"))
	assert.True(t, f.ShouldIgnore("metadata.json"))
	assert.False(t, f.ShouldIgnore("new/x.json"))

	var nilFilter *IgnoreFilter
	assert.False(t, nilFilter.ShouldIgnore("anything"))
}
