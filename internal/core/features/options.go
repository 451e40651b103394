package features

import (
	"log/slog"
	"slices"
)

// DefaultNullMarkers は null センチネルとして扱う文字列リテラル
var DefaultNullMarkers = []string{"None", "null"}

// Options は特徴抽出の設定
type Options struct {
	// Policy はカテゴリ判定ポリシー（nil の場合は ThresholdPolicy{10}）
	Policy ClassificationPolicy
	// NullMarkers は null として扱う文字列値
	NullMarkers []string
	// HashFallback が false の場合、数値化できない非カテゴリ値は (0, confidence) になる
	HashFallback bool
	// StandardizeWorkers は列標準化の並列数（0 以下で GOMAXPROCS）
	StandardizeWorkers int
	// Logger はフォールバック発生時のデバッグログ出力先
	Logger *slog.Logger
}

// DefaultOptions はデフォルト設定を返す
func DefaultOptions() Options {
	return Options{
		Policy:       ThresholdPolicy{MaxNumericCardinality: DefaultMaxNumericCardinality},
		NullMarkers:  slices.Clone(DefaultNullMarkers),
		HashFallback: true,
	}
}

// Encoding は値の数値化に影響する設定
// fit 済みのエンコーディングと一緒に保存しないと同じ特徴を再現できない
type Encoding struct {
	NullMarkers  []string `json:"null_markers"`
	HashFallback bool     `json:"hash_fallback"`
}

// Encoding は o のうちエンコーディングに影響する設定を返す
func (o Options) Encoding() Encoding {
	return Encoding{
		NullMarkers:  slices.Clone(o.NullMarkers),
		HashFallback: o.HashFallback,
	}
}

// WithEncoding は e の設定で上書きした Options を返す
func (o Options) WithEncoding(e Encoding) Options {
	o.NullMarkers = slices.Clone(e.NullMarkers)
	o.HashFallback = e.HashFallback
	return o
}

func (o Options) policy() ClassificationPolicy {
	if o.Policy == nil {
		return ThresholdPolicy{MaxNumericCardinality: DefaultMaxNumericCardinality}
	}
	return o.Policy
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// isNull は値が null センチネルかどうかを判定する
// リテラルマーカーは文字列値にのみ適用する
func (o Options) isNull(v Value) bool {
	if v.IsNull() {
		return true
	}
	if v.Kind() != KindString {
		return false
	}
	return slices.Contains(o.NullMarkers, v.Text())
}
