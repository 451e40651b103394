package ingestion

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jinford/token-features/internal/core/features"
)

var (
	// ErrRunNotFound は実行記録が存在しない場合のエラー
	ErrRunNotFound = errors.New("feature run not found")
	// ErrRowNotFound は指定した行が存在しない場合のエラー
	ErrRowNotFound = errors.New("feature row not found")
	// ErrRunAlreadyExists は同じIDの実行記録が既に存在する場合のエラー
	ErrRunAlreadyExists = errors.New("feature run already exists")
)

// Repository は実行記録と特徴ベクトルの永続化を行うインターフェース
// テスト時のモック用に消費者側で定義
type Repository interface {
	SaveRun(ctx context.Context, run *Run, rows []Row) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*RunSummary, error)
	GetRow(ctx context.Context, runID uuid.UUID, ordinal int) (*Row, error)
	SearchSimilar(ctx context.Context, runID uuid.UUID, query []float32, limit int) ([]*SimilarRow, error)
}

// ArtifactWriter は特徴行列をファイルに書き出すインターフェース
type ArtifactWriter interface {
	Write(dir string, run *Run, tokens []features.Token, m *features.Matrix) error
}

// TokenLoader は入力パスからトークン列を読み込むインターフェース
type TokenLoader interface {
	Load(path string) ([]features.Token, []string, error)
}
