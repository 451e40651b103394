package features

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoricalEncoder_DeterministicOrder(t *testing.T) {
	e1 := NewCategoricalEncoder("pos", []string{"VERB", "ADJ", "NOUN", "ADJ"})
	e2 := NewCategoricalEncoder("pos", []string{"NOUN", "VERB", "ADJ"})

	assert.Equal(t, []string{"ADJ", "NOUN", "VERB"}, e1.Values())
	assert.Equal(t, e1.Values(), e2.Values())

	i, ok := e1.Encode("NOUN")
	require.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = e1.Encode("PRON")
	assert.False(t, ok)
}

func TestCategoricalEncoder_RoundTrip(t *testing.T) {
	values := []string{"b", "a", "10", "2", "Z"}
	e := NewCategoricalEncoder("shape", values)

	for _, v := range values {
		i, ok := e.Encode(v)
		require.True(t, ok)
		decoded, ok := e.Decode(i)
		require.True(t, ok)
		assert.Equal(t, v, decoded)
	}

	_, ok := e.Decode(-1)
	assert.False(t, ok)
	_, ok = e.Decode(e.Len())
	assert.False(t, ok)
}

func TestEncoderSet_OnlyCategorical(t *testing.T) {
	tokens := []Token{
		tok("a", map[string]LabelAnnotation{"ent": ann(Null(), 0), "pos": ann(String("NOUN"), 1)}),
		tok("b", map[string]LabelAnnotation{"ent": ann(String("ORG"), 1), "pos": ann(String("VERB"), 1)}),
	}
	set := FitEncoders(CollectSchema(tokens, DefaultOptions()))

	assert.Equal(t, []string{"ent"}, set.LabelTypes())
	assert.Equal(t, 1, set.Len())

	v, err := set.Decode("ent", 0)
	require.NoError(t, err)
	assert.Equal(t, "ORG", v)

	_, err = set.Decode("pos", 0)
	assert.ErrorIs(t, err, ErrUnknownLabelType)

	_, err = set.Decode("ent", 5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestEncoderSet_JSONRoundTrip(t *testing.T) {
	tokens := []Token{
		tok("a", map[string]LabelAnnotation{"ent": ann(Null(), 0)}),
		tok("b", map[string]LabelAnnotation{"ent": ann(String("ORG"), 1)}),
		tok("c", map[string]LabelAnnotation{"ent": ann(String("LOC"), 1)}),
	}
	set := FitEncoders(CollectSchema(tokens, DefaultOptions()))

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ent":["LOC","ORG"]}`, string(data))

	var restored EncoderSet
	require.NoError(t, json.Unmarshal(data, &restored))
	e, ok := restored.Get("ent")
	require.True(t, ok)
	assert.Equal(t, []string{"LOC", "ORG"}, e.Values())
}
