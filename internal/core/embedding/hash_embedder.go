package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

const (
	// DefaultHashDimension は HashEmbedder のデフォルト次元
	DefaultHashDimension = 64

	hashEmbedderModel = "hash-bow-v1"
)

// HashEmbedder は外部サービスを使わない決定的な Embedder
// 意味的な埋め込みではなく、単語の FNV ハッシュによる bag-of-words ベクトル
// オフライン実行とテストで使用する
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder は新しい HashEmbedder を作成する
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashEmbedder{dim: dim}
}

// BatchEmbed は Embedder の実装
func (e *HashEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	v := make([]float32, e.dim)
	h := fnv.New64a()
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h.Reset()
		_, _ = h.Write([]byte(word))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dim))
		if sum&(1<<63) != 0 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	NormalizeL2(v)
	return v
}

// ModelName は Embedder の実装
func (e *HashEmbedder) ModelName() string {
	return hashEmbedderModel
}

// Dimension は Embedder の実装
func (e *HashEmbedder) Dimension() int {
	return e.dim
}

// MaxBatchSize は Embedder の実装
func (e *HashEmbedder) MaxBatchSize() int {
	return 1000
}

// Tier は Embedder の実装
func (e *HashEmbedder) Tier() Tier {
	return TierCPU
}

var _ Embedder = (*HashEmbedder)(nil)
