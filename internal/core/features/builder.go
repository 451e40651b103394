package features

import (
	"math"
	"strconv"
	"strings"
)

// Builder はトークンごとの特徴ベクトルを生成する
// スキーマとエンコーダは構築後に変更しない
type Builder struct {
	schema   *Schema
	encoders *EncoderSet
	opts     Options
	order    []string
}

// NewBuilder は新しい Builder を作成する
func NewBuilder(schema *Schema, encoders *EncoderSet, opts Options) *Builder {
	return &Builder{
		schema:   schema,
		encoders: encoders,
		opts:     opts,
		order:    schema.LabelTypes(),
	}
}

// Build は全トークンの生特徴行列を生成する
// いずれかのトークンがスキーマに違反した場合は行列を返さない
func (b *Builder) Build(tokens []Token) (*Matrix, *Report, error) {
	report := newReport(len(tokens), len(b.order))
	m := NewMatrix(len(tokens), 2*len(b.order))

	for i, tok := range tokens {
		if err := b.fillRow(i, tok, m.Row(i), report); err != nil {
			return nil, nil, err
		}
	}
	return m, report, nil
}

func (b *Builder) fillRow(tokenIndex int, tok Token, row []float64, report *Report) error {
	if len(b.order) > 0 && tok.Labels == nil {
		return &SchemaValidationError{TokenIndex: tokenIndex, Reason: "labels mapping is missing"}
	}

	for j, labelType := range b.order {
		ann, ok := tok.Labels[labelType]
		if !ok {
			return &SchemaValidationError{TokenIndex: tokenIndex, LabelType: labelType, Reason: "annotation is missing"}
		}
		c := ann.Confidence
		if math.IsNaN(c) || c < 0 || c > 1 {
			return &SchemaValidationError{TokenIndex: tokenIndex, LabelType: labelType, Reason: "confidence must be in [0, 1]"}
		}

		value, confidence := b.encode(labelType, ann, report)
		row[2*j] = value
		row[2*j+1] = confidence
	}
	return nil
}

// encode は1つの注釈を (value, confidence) の組に変換する
func (b *Builder) encode(labelType string, ann LabelAnnotation, report *Report) (float64, float64) {
	if b.opts.isNull(ann.Value) {
		return 0, 0
	}

	c := ann.Confidence
	ls, _ := b.schema.Label(labelType)
	if ls.IsCategorical {
		enc, ok := b.encoders.Get(labelType)
		if ok {
			if i, ok := enc.Encode(ann.Value.Text()); ok {
				return float64(i) * c, c
			}
		}
		report.recordUnknown(labelType)
		b.opts.logger().Debug("unknown category, falling back to zero pair",
			"label_type", labelType,
			"value", ann.Value.Text(),
		)
		return 0, 0
	}

	if f, ok := parseFloat(ann.Value); ok {
		return f * c, c
	}

	report.recordHash(labelType)
	if !b.opts.HashFallback {
		return 0, c
	}
	return hashBucket(ann.Value.Text()) * c, c
}

// parseFloat は値を有限の浮動小数点数として解釈する
func parseFloat(v Value) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Text()), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
