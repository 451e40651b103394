package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Token はラベル注釈付きのテキスト単位を表す
// パイプライン実行中は不変として扱う
type Token struct {
	Text   string                     `json:"text"`
	Labels map[string]LabelAnnotation `json:"labels"`
}

// LabelAnnotation は1つのラベルの値と確信度を表す
// "value" キーが存在しない場合は null として扱う
type LabelAnnotation struct {
	Value      Value   `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Kind は Value の種別
type Kind int

const (
	// KindNull は値が未設定であることを表す（ゼロ値）
	KindNull Kind = iota
	// KindString は文字列値
	KindString
	// KindNumber は数値リテラル（元のテキスト表現を保持する）
	KindNumber
)

// String は種別名を返す
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value はラベル値（null / 文字列 / 数値）を表すタグ付き値
// 数値は JSON 上のリテラル表現をそのまま保持し、カテゴリキーとして使う
type Value struct {
	kind Kind
	text string
}

// Null は null 値を返す
func Null() Value {
	return Value{}
}

// String は文字列値を作成する
func String(s string) Value {
	return Value{kind: KindString, text: s}
}

// Number は数値を作成する
func Number(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// NumberLiteral は数値リテラルのテキストから数値を作成する
func NumberLiteral(literal string) Value {
	return Value{kind: KindNumber, text: literal}
}

// Kind は値の種別を返す
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull は値が null かどうかを返す
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Text は値のテキスト表現を返す（null の場合は空文字列）
func (v Value) Text() string {
	return v.text
}

// String は fmt.Stringer の実装
func (v Value) String() string {
	if v.kind == KindNull {
		return "<null>"
	}
	return v.text
}

// UnmarshalJSON は null / 文字列 / 数値 / 真偽値を受け付ける
// 真偽値は "true" / "false" の文字列として扱う
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode label value: %w", err)
	}

	switch x := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = String(x)
	case json.Number:
		*v = NumberLiteral(x.String())
	case bool:
		*v = String(strconv.FormatBool(x))
	default:
		return fmt.Errorf("unsupported label value type %T", raw)
	}
	return nil
}

// MarshalJSON は元の種別を保って JSON に変換する
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindNumber:
		return []byte(v.text), nil
	default:
		return json.Marshal(v.text)
	}
}
