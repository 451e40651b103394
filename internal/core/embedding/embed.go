// Package embedding はラベル特徴と連結する意味ベクトル行列を生成する
// 推論そのものは Embedder 実装（OpenAI API など）に委譲する
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

const (
	// DefaultBatchSize はデフォルトのバッチサイズ
	DefaultBatchSize = 100
	// DefaultMaxBatchTokens は1バッチあたりのデフォルト最大トークン数
	DefaultMaxBatchTokens = 8000
	// MinBatchSize は最小バッチサイズ（MaxBatchSize()が0を返した場合のフォールバック）
	MinBatchSize = 1
)

var (
	// ErrEmbeddingCountMismatch は入力件数と返却ベクトル数が一致しない場合のエラー
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
	// ErrDimensionMismatch はベクトル次元が期待値と一致しない場合のエラー
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Options は EmbedAll の設定
type Options struct {
	// BatchSize はバッチサイズ（Embedder.MaxBatchSize()でクリップされる）
	BatchSize int
	// MaxBatchTokens は1バッチの最大トークン数（0 以下で無制限）
	MaxBatchTokens int
	// Counter はトークン数のカウンタ（nil の場合はトークン上限を適用しない）
	Counter TokenCounter
	// Logger はログ出力先
	Logger *slog.Logger
}

// DefaultOptions はデフォルト設定を返す
func DefaultOptions() Options {
	return Options{
		BatchSize:      DefaultBatchSize,
		MaxBatchTokens: DefaultMaxBatchTokens,
	}
}

// EmbedAll は全テキストの Embedding を入力順に生成し、L2 正規化して返す
func EmbedAll(ctx context.Context, e Embedder, texts []string, opts Options) ([][]float32, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batchSize := effectiveBatchSize(opts.BatchSize, e.MaxBatchSize(), logger)
	batches := NewBatcher(batchSize, opts.MaxBatchTokens, opts.Counter).Split(texts)

	logger.Debug("Embedding生成を開始",
		"model", e.ModelName(),
		"tier", e.Tier().String(),
		"texts", len(texts),
		"batches", len(batches),
	)

	dim := e.Dimension()
	out := make([][]float32, len(texts))
	for bi, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		inputs := make([]string, len(batch))
		for k, idx := range batch {
			inputs[k] = texts[idx]
		}

		vectors, err := e.BatchEmbed(ctx, inputs)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d/%d: %w", bi+1, len(batches), err)
		}
		if len(vectors) != len(inputs) {
			return nil, fmt.Errorf("%w: batch %d sent %d texts, got %d vectors", ErrEmbeddingCountMismatch, bi+1, len(inputs), len(vectors))
		}

		for k, idx := range batch {
			v := vectors[k]
			if dim > 0 && len(v) != dim {
				return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dim)
			}
			NormalizeL2(v)
			out[idx] = v
		}
	}
	return out, nil
}

// effectiveBatchSize はバッチサイズを Embedder の最大値でクリップする
func effectiveBatchSize(configured, maxBatchSize int, logger *slog.Logger) int {
	if maxBatchSize <= 0 {
		logger.Warn("Embedder.MaxBatchSize()が無効な値を返しました。フォールバック値を使用します",
			"returned", maxBatchSize,
			"fallback", MinBatchSize,
		)
		maxBatchSize = MinBatchSize
	}
	size := configured
	if size > maxBatchSize {
		size = maxBatchSize
	}
	if size <= 0 {
		size = maxBatchSize
	}
	return size
}

// NormalizeL2 はベクトルをその場で長さ 1 に正規化する
// ゼロベクトルはそのまま残す
func NormalizeL2(vector []float32) {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	magnitude := math.Sqrt(sumSquares)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}
