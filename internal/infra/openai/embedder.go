package openai

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jinford/token-features/internal/core/embedding"
	"github.com/openai/openai-go/v3"
)

// Embedder は OpenAI API を使用してテキストをベクトルに変換する
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
	timeout   time.Duration
	retry     retryPolicy
}

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536
	// MaxEmbeddingBatch はOpenAI APIが1リクエストで受け付ける最大件数
	MaxEmbeddingBatch = 100
)

type embedderOptions struct {
	model     string
	dimension int
	baseURL   string
	timeout   time.Duration
	retry     retryPolicy
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithBaseURL は API のベース URL を上書きする（互換サーバーやテスト用）
func WithBaseURL(baseURL string) EmbedderOption {
	return func(o *embedderOptions) {
		o.baseURL = baseURL
	}
}

// WithTimeout はリクエスト1回あたりのタイムアウトを上書きする
func WithTimeout(timeout time.Duration) EmbedderOption {
	return func(o *embedderOptions) {
		o.timeout = timeout
	}
}

// WithRetry はレート制限時のリトライ回数とバックオフを上書きする
func WithRetry(maxRetries int, base, maxBackoff time.Duration) EmbedderOption {
	return func(o *embedderOptions) {
		o.retry = retryPolicy{maxRetries: maxRetries, baseBackoff: base, maxBackoff: maxBackoff}
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(apiKey string, opts ...EmbedderOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
		timeout:   DefaultTimeout,
		retry:     defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Embedder{
		client:    newAPIClient(apiKey, options.baseURL),
		model:     options.model,
		dimension: options.dimension,
		timeout:   options.timeout,
		retry:     options.retry,
	}, nil
}

// BatchEmbed はバッチで Embedding を生成する（最大100件）
// レート制限エラーの場合は Exponential Backoff でリトライする
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}

	if len(texts) > MaxEmbeddingBatch {
		return nil, fmt.Errorf("batch size exceeds maximum of %d", MaxEmbeddingBatch)
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
	}

	if len(texts) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(texts[0]),
		}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		}
	}

	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	var lastErr error
	for attempt := 0; attempt <= e.retry.maxRetries; attempt++ {
		if attempt > 0 {
			if err := e.retry.wait(ctx, attempt); err != nil {
				return nil, err
			}
		}

		resp, err := e.create(ctx, params)
		if err != nil {
			lastErr = err

			if isRateLimitError(err) {
				continue
			}

			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}

		if len(resp.Data) != len(texts) {
			return nil, fmt.Errorf("%w: sent %d texts, got %d embeddings", embedding.ErrEmbeddingCountMismatch, len(texts), len(resp.Data))
		}

		data := resp.Data
		sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

		embeddings := make([][]float32, 0, len(data))
		for _, d := range data {
			vector := make([]float32, len(d.Embedding))
			for i, v := range d.Embedding {
				vector[i] = float32(v)
			}
			embeddings = append(embeddings, vector)
		}
		return embeddings, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func (e *Embedder) create(ctx context.Context, params openai.EmbeddingNewParams) (*openai.CreateEmbeddingResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.client.Embeddings.New(ctx, params)
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// MaxBatchSize はバッチ処理の最大サイズを返す（OpenAI APIは最大100件）
func (e *Embedder) MaxBatchSize() int {
	return MaxEmbeddingBatch
}

// Tier は推論の実行環境を返す
func (e *Embedder) Tier() embedding.Tier {
	return embedding.TierRemote
}

// インターフェース実装の確認
var _ embedding.Embedder = (*Embedder)(nil)
