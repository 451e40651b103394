package features

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// DefaultMaxNumericCardinality はカテゴリ判定のデフォルト閾値
// 非 null の異なり数がこれを超えるとカテゴリ扱いになる
const DefaultMaxNumericCardinality = 10

// LabelStats はラベル種別ごとの収集統計で、分類ポリシーの入力になる
type LabelStats struct {
	LabelType      string
	DistinctValues int // 非 null 値の異なり数
	NullCount      int // null センチネルを持つトークン数
	Observations   int // 注釈が存在したトークン数
}

// ClassificationPolicy はラベル種別をカテゴリ扱いするかを決める
type ClassificationPolicy interface {
	IsCategorical(stats LabelStats) bool
}

// ThresholdPolicy は null の出現、または異なり数が閾値を超えることでカテゴリと判定する
type ThresholdPolicy struct {
	MaxNumericCardinality int
}

// IsCategorical は ClassificationPolicy の実装
func (p ThresholdPolicy) IsCategorical(stats LabelStats) bool {
	return stats.NullCount > 0 || stats.DistinctValues > p.MaxNumericCardinality
}

// PolicyFunc は関数を ClassificationPolicy として扱うアダプタ
type PolicyFunc func(stats LabelStats) bool

// IsCategorical は ClassificationPolicy の実装
func (f PolicyFunc) IsCategorical(stats LabelStats) bool {
	return f(stats)
}

// LabelSchema は1つのラベル種別のスキーマ
type LabelSchema struct {
	LabelType     string   `json:"label_type"`
	IsCategorical bool     `json:"is_categorical"`
	HasNull       bool     `json:"has_null"`
	KnownValues   []string `json:"known_values"` // 辞書順
}

// Schema はバッチ全体から構築されたラベルスキーマ
// 構築後は読み取り専用
type Schema struct {
	labels map[string]*LabelSchema
	order  []string
}

// CollectSchema は全トークンを1回走査してスキーマを構築する
func CollectSchema(tokens []Token, opts Options) *Schema {
	policy := opts.policy()

	values := make(map[string]map[string]struct{})
	stats := make(map[string]*LabelStats)

	for _, tok := range tokens {
		for labelType, ann := range tok.Labels {
			st, ok := stats[labelType]
			if !ok {
				st = &LabelStats{LabelType: labelType}
				stats[labelType] = st
				values[labelType] = make(map[string]struct{})
			}
			st.Observations++
			if opts.isNull(ann.Value) {
				st.NullCount++
				continue
			}
			values[labelType][ann.Value.Text()] = struct{}{}
		}
	}

	labels := make(map[string]*LabelSchema, len(stats))
	for labelType, st := range stats {
		st.DistinctValues = len(values[labelType])
		labels[labelType] = &LabelSchema{
			LabelType:     labelType,
			IsCategorical: policy.IsCategorical(*st),
			HasNull:       st.NullCount > 0,
			KnownValues:   sortedKeys(values[labelType]),
		}
	}

	return newSchema(labels)
}

func newSchema(labels map[string]*LabelSchema) *Schema {
	return &Schema{
		labels: labels,
		order:  canonicalOrder(labels),
	}
}

// canonicalOrder はラベル種別の正規順序（辞書順）を返す
// 特徴ベクトルと特徴名の両方がこの順序を共有する
func canonicalOrder[T any](labels map[string]T) []string {
	order := make([]string, 0, len(labels))
	for labelType := range labels {
		order = append(order, labelType)
	}
	sort.Strings(order)
	return order
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LabelTypes は正規順序のラベル種別一覧を返す
func (s *Schema) LabelTypes() []string {
	return slices.Clone(s.order)
}

// Len はラベル種別数を返す
func (s *Schema) Len() int {
	return len(s.order)
}

// Label はラベル種別のスキーマを返す
func (s *Schema) Label(labelType string) (*LabelSchema, bool) {
	ls, ok := s.labels[labelType]
	return ls, ok
}

// Width は特徴行列の列数（ラベル種別数 × 2）を返す
func (s *Schema) Width() int {
	return 2 * len(s.order)
}

// MarshalJSON は正規順序のラベルスキーマ配列として出力する
func (s *Schema) MarshalJSON() ([]byte, error) {
	out := make([]*LabelSchema, 0, len(s.order))
	for _, labelType := range s.order {
		out = append(out, s.labels[labelType])
	}
	return json.Marshal(out)
}

// UnmarshalJSON は MarshalJSON の出力からスキーマを復元する
func (s *Schema) UnmarshalJSON(data []byte) error {
	var in []*LabelSchema
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to decode schema: %w", err)
	}
	labels := make(map[string]*LabelSchema, len(in))
	for _, ls := range in {
		if _, dup := labels[ls.LabelType]; dup {
			return fmt.Errorf("duplicate label type %q in schema", ls.LabelType)
		}
		ls.KnownValues = slices.Clone(ls.KnownValues)
		sort.Strings(ls.KnownValues)
		labels[ls.LabelType] = ls
	}
	*s = *newSchema(labels)
	return nil
}
