// Package features はラベル注釈付きトークンを固定幅の数値特徴行列に変換する
//
// 処理は fit（スキーマ収集とカテゴリエンコーダ構築）と transform
// （特徴ベクトル生成、0 を除外した列標準化、特徴名生成）の2段階で、
// fit の結果は transform 中に変更されない。
//
//	res, err := features.Extract(tokens, features.DefaultOptions())
//	if err != nil {
//	    return err // *SchemaValidationError のみ
//	}
//	combined, err := features.Concat(res.Matrix, semantic)
package features

// Fitted は fit 済みのスキーマとエンコーダを保持する
// 同じエンコーディングを新しいバッチに適用するために再利用できる
type Fitted struct {
	Schema   *Schema
	Encoders *EncoderSet
	opts     Options
}

// Result は特徴抽出の結果
type Result struct {
	Matrix   *Matrix // 標準化済み
	Raw      *Matrix // 標準化前
	Names    []string
	Schema   *Schema
	Encoders *EncoderSet
	Encoding Encoding
	Report   *Report
}

// Fit はトークン全体からスキーマとエンコーダを構築する
func Fit(tokens []Token, opts Options) *Fitted {
	schema := CollectSchema(tokens, opts)
	return &Fitted{
		Schema:   schema,
		Encoders: FitEncoders(schema),
		opts:     opts,
	}
}

// NewFitted は保存済みのスキーマとエンコーダから Fitted を復元する
// encoding は fit 時の設定で、opts の同名の設定より優先される
func NewFitted(schema *Schema, encoders *EncoderSet, encoding Encoding, opts Options) *Fitted {
	return &Fitted{Schema: schema, Encoders: encoders, opts: opts.WithEncoding(encoding)}
}

// Encoding は fit 時のエンコーディング設定を返す
func (f *Fitted) Encoding() Encoding {
	return f.opts.Encoding()
}

// Transform は fit 済みのエンコーディングでトークンを特徴行列に変換する
// スキーマにないラベル種別は無視し、スキーマにあるラベル種別の欠落はエラーにする
func (f *Fitted) Transform(tokens []Token) (*Result, error) {
	raw, report, err := NewBuilder(f.Schema, f.Encoders, f.opts).Build(tokens)
	if err != nil {
		return nil, err
	}

	standardized, degenerate := Standardize(raw, f.opts.StandardizeWorkers)
	report.DegenerateColumns = degenerate

	if report.HasFallbacks() {
		f.opts.logger().Debug("feature extraction completed with fallbacks",
			"tokens", report.Tokens,
			"unknown_categories", report.UnknownCategories,
			"hash_fallbacks", report.HashFallbacks,
			"degenerate_columns", len(report.DegenerateColumns),
		)
	}

	return &Result{
		Matrix:   standardized,
		Raw:      raw,
		Names:    FeatureNames(f.Schema),
		Schema:   f.Schema,
		Encoders: f.Encoders,
		Encoding: f.Encoding(),
		Report:   report,
	}, nil
}

// Extract は fit と transform を同じバッチに対して実行する
func Extract(tokens []Token, opts Options) (*Result, error) {
	return Fit(tokens, opts).Transform(tokens)
}
