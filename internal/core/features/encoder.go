package features

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// CategoricalEncoder はカテゴリ値と整数インデックスの全単射
// 既知値を辞書順に並べ、0 から連番を割り当てる
type CategoricalEncoder struct {
	labelType string
	values    []string
	index     map[string]int
}

// NewCategoricalEncoder は既知値からエンコーダを作成する
// 入力順に依存しないよう、重複を除いて辞書順に並べ直す
func NewCategoricalEncoder(labelType string, knownValues []string) *CategoricalEncoder {
	values := slices.Clone(knownValues)
	sort.Strings(values)
	values = slices.Compact(values)

	index := make(map[string]int, len(values))
	for i, v := range values {
		index[v] = i
	}
	return &CategoricalEncoder{
		labelType: labelType,
		values:    values,
		index:     index,
	}
}

// LabelType はエンコーダのラベル種別を返す
func (e *CategoricalEncoder) LabelType() string {
	return e.labelType
}

// Encode は値のインデックスを返す（未知の値は ok=false）
func (e *CategoricalEncoder) Encode(value string) (int, bool) {
	i, ok := e.index[value]
	return i, ok
}

// Decode はインデックスを元の値に戻す
func (e *CategoricalEncoder) Decode(index int) (string, bool) {
	if index < 0 || index >= len(e.values) {
		return "", false
	}
	return e.values[index], true
}

// Values は辞書順の既知値を返す
func (e *CategoricalEncoder) Values() []string {
	return slices.Clone(e.values)
}

// Len は既知値の数を返す
func (e *CategoricalEncoder) Len() int {
	return len(e.values)
}

// EncoderSet はカテゴリ扱いのラベル種別ごとのエンコーダ集合
type EncoderSet struct {
	encoders map[string]*CategoricalEncoder
}

// FitEncoders はスキーマのカテゴリ扱いラベルからエンコーダ集合を構築する
func FitEncoders(schema *Schema) *EncoderSet {
	set := &EncoderSet{encoders: make(map[string]*CategoricalEncoder)}
	for _, labelType := range schema.LabelTypes() {
		ls, _ := schema.Label(labelType)
		if !ls.IsCategorical {
			continue
		}
		set.encoders[labelType] = NewCategoricalEncoder(labelType, ls.KnownValues)
	}
	return set
}

// Get はラベル種別のエンコーダを返す
func (s *EncoderSet) Get(labelType string) (*CategoricalEncoder, bool) {
	e, ok := s.encoders[labelType]
	return e, ok
}

// LabelTypes はエンコーダを持つラベル種別を辞書順で返す
func (s *EncoderSet) LabelTypes() []string {
	return canonicalOrder(s.encoders)
}

// Len はエンコーダ数を返す
func (s *EncoderSet) Len() int {
	return len(s.encoders)
}

// Decode はラベル種別とインデックスから元のカテゴリ値を返す
func (s *EncoderSet) Decode(labelType string, index int) (string, error) {
	e, ok := s.encoders[labelType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLabelType, labelType)
	}
	v, ok := e.Decode(index)
	if !ok {
		return "", fmt.Errorf("%w: label %q index %d (size %d)", ErrIndexOutOfRange, labelType, index, e.Len())
	}
	return v, nil
}

// MarshalJSON はラベル種別 → 既知値配列のマップとして出力する
func (s *EncoderSet) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(s.encoders))
	for labelType, e := range s.encoders {
		out[labelType] = e.values
	}
	return json.Marshal(out)
}

// UnmarshalJSON は MarshalJSON の出力からエンコーダ集合を復元する
func (s *EncoderSet) UnmarshalJSON(data []byte) error {
	var in map[string][]string
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to decode encoder set: %w", err)
	}
	s.encoders = make(map[string]*CategoricalEncoder, len(in))
	for labelType, values := range in {
		s.encoders[labelType] = NewCategoricalEncoder(labelType, values)
	}
	return nil
}
