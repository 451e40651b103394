package ingestion

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/token-features/internal/core/features"
)

// Run は1回の特徴抽出の実行記録
type Run struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time

	// FeatureNames は連結後の列名（ラベル特徴、意味ベクトルの順）
	FeatureNames []string
	// LabelWidth はラベル特徴の列数（2 × ラベル種別数）
	LabelWidth int

	EmbeddingModel     string // 意味ベクトルを使わない場合は空
	EmbeddingDimension int
	EmbeddingTier      string
	HashVersion        string
	// Encoding は fit 時の null マーカーとハッシュ代替の設定
	Encoding features.Encoding

	Schema   *features.Schema
	Encoders *features.EncoderSet
	Report   *features.Report

	TokenCount int
	Files      []string
}

// Width は連結後の特徴ベクトルの列数を返す
func (r *Run) Width() int {
	return r.LabelWidth + r.EmbeddingDimension
}

// Fitted は実行記録のスキーマとエンコーダから Fitted を復元する
// 保存済みの Encoding が opts より優先される
func (r *Run) Fitted(opts features.Options) *features.Fitted {
	return features.NewFitted(r.Schema, r.Encoders, r.Encoding, opts)
}

// Row はトークン1件分の特徴ベクトル
type Row struct {
	Ordinal int
	Text    string
	Vector  []float32
}

// RunSummary は実行記録の一覧表示用の要約
type RunSummary struct {
	ID             uuid.UUID
	Name           string
	CreatedAt      time.Time
	TokenCount     int
	Width          int
	EmbeddingModel string
}

// SimilarRow は類似検索の結果
type SimilarRow struct {
	Ordinal  int
	Text     string
	Distance float64 // コサイン距離
}

// semanticNames は意味ベクトルの列名を返す
func semanticNames(dim int) []string {
	names := make([]string, dim)
	for i := range names {
		names[i] = fmt.Sprintf("semantic_%d", i)
	}
	return names
}

// toRows は行列を保存用の Row に変換する
func toRows(tokens []features.Token, m *features.Matrix) []Row {
	rows := make([]Row, m.Rows)
	for i := range rows {
		vector := make([]float32, m.Cols)
		for j, v := range m.Row(i) {
			vector[j] = float32(v)
		}
		rows[i] = Row{Ordinal: i, Text: tokens[i].Text, Vector: vector}
	}
	return rows
}
