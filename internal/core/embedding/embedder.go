package embedding

import (
	"context"
	"fmt"
)

// Tier は Embedding 推論の実行環境（外部の能力問い合わせ結果）
type Tier int

const (
	// TierCPU はローカル CPU での推論
	TierCPU Tier = iota
	// TierGPU はローカル GPU での推論
	TierGPU
	// TierRemote は外部 API での推論
	TierRemote
)

// String はティア名を返す
func (t Tier) String() string {
	switch t {
	case TierCPU:
		return "cpu"
	case TierGPU:
		return "gpu"
	case TierRemote:
		return "remote"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Embedder はテキストを固定次元のベクトルに変換するインターフェース
type Embedder interface {
	// BatchEmbed はバッチで Embedding を生成する（入力順を保つ）
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName はモデル名を返す
	ModelName() string

	// Dimension は Embedding ベクトルの次元数を返す
	Dimension() int

	// MaxBatchSize は1回の呼び出しで扱える最大件数を返す
	MaxBatchSize() int

	// Tier は推論の実行環境を返す
	Tier() Tier
}

// Metadata は Embedder のメタデータを表す
type Metadata struct {
	ModelName string
	Dimension int
	Tier      Tier
}

// MetadataOf は Embedder からメタデータを取り出す
func MetadataOf(e Embedder) Metadata {
	return Metadata{
		ModelName: e.ModelName(),
		Dimension: e.Dimension(),
		Tier:      e.Tier(),
	}
}
