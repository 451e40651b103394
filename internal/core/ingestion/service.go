package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/token-features/internal/core/embedding"
	"github.com/jinford/token-features/internal/core/features"
)

// ErrRepositoryNotConfigured はリポジトリ未設定で永続化系の操作を呼んだ場合のエラー
var ErrRepositoryNotConfigured = errors.New("feature repository not configured")

// RunParams は特徴抽出の実行パラメータ
type RunParams struct {
	// Input はトークンファイルまたはディレクトリのパス
	Input string
	// Name は実行記録の名前（空の場合は入力パス）
	Name string
	// OutputDir が空でなければ CSV とメタデータを書き出す
	OutputDir string
	// Fitted が nil でなければ fit を行わず既存のエンコーディングを適用する
	Fitted *features.Fitted
	// Persist はリポジトリに保存するかどうか
	Persist bool
}

// RunResult は特徴抽出の結果
type RunResult struct {
	Run      *Run
	Features *features.Result
	Combined *features.Matrix // ラベル特徴と意味ベクトルの連結
	Duration time.Duration
}

// Service は入力の読み込みから特徴行列の保存までのユースケースを提供する
type Service struct {
	loader    TokenLoader
	embedder  embedding.Embedder // オプショナル
	repo      Repository         // オプショナル
	artifacts ArtifactWriter     // オプショナル
	featOpts  features.Options
	embedOpts embedding.Options
	logger    *slog.Logger
	now       func() time.Time
}

type serviceOptions struct {
	embedder  embedding.Embedder
	repo      Repository
	artifacts ArtifactWriter
	featOpts  features.Options
	embedOpts embedding.Options
	logger    *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithEmbedder は意味ベクトルの生成に使う Embedder を設定する
func WithEmbedder(e embedding.Embedder) ServiceOption {
	return func(o *serviceOptions) {
		o.embedder = e
	}
}

// WithRepository は永続化に使うリポジトリを設定する
func WithRepository(repo Repository) ServiceOption {
	return func(o *serviceOptions) {
		o.repo = repo
	}
}

// WithArtifactWriter はファイル出力を設定する
func WithArtifactWriter(w ArtifactWriter) ServiceOption {
	return func(o *serviceOptions) {
		o.artifacts = w
	}
}

// WithFeatureOptions は特徴抽出の設定を上書きする
func WithFeatureOptions(opts features.Options) ServiceOption {
	return func(o *serviceOptions) {
		o.featOpts = opts
	}
}

// WithEmbeddingOptions は Embedding 生成の設定を上書きする
func WithEmbeddingOptions(opts embedding.Options) ServiceOption {
	return func(o *serviceOptions) {
		o.embedOpts = opts
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(loader TokenLoader, opts ...ServiceOption) *Service {
	options := serviceOptions{
		featOpts:  features.DefaultOptions(),
		embedOpts: embedding.DefaultOptions(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.featOpts.Logger == nil {
		options.featOpts.Logger = options.logger
	}
	if options.embedOpts.Logger == nil {
		options.embedOpts.Logger = options.logger
	}

	return &Service{
		loader:    loader,
		embedder:  options.embedder,
		repo:      options.repo,
		artifacts: options.artifacts,
		featOpts:  options.featOpts,
		embedOpts: options.embedOpts,
		logger:    options.logger,
		now:       time.Now,
	}
}

// Run はトークンを読み込み、特徴行列を生成して出力する
// 検証エラーの場合は部分的な結果を返さない
func (s *Service) Run(ctx context.Context, params RunParams) (*RunResult, error) {
	start := s.now()

	tokens, files, err := s.loader.Load(params.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}
	s.logger.Info("特徴抽出を開始", "input", params.Input, "files", len(files), "tokens", len(tokens))

	fitted := params.Fitted
	if fitted == nil {
		fitted = features.Fit(tokens, s.featOpts)
	}

	result, err := fitted.Transform(tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to extract label features: %w", err)
	}

	run := &Run{
		ID:           uuid.New(),
		Name:         params.Name,
		CreatedAt:    start,
		FeatureNames: result.Names,
		LabelWidth:   result.Matrix.Cols,
		HashVersion:  features.HashVersion,
		Encoding:     result.Encoding,
		Schema:       result.Schema,
		Encoders:     result.Encoders,
		Report:       result.Report,
		TokenCount:   len(tokens),
		Files:        files,
	}
	if run.Name == "" {
		run.Name = params.Input
	}

	combined := result.Matrix
	if s.embedder != nil {
		combined, err = s.embed(ctx, tokens, result.Matrix)
		if err != nil {
			return nil, err
		}
		meta := embedding.MetadataOf(s.embedder)
		run.EmbeddingModel = meta.ModelName
		run.EmbeddingDimension = combined.Cols - result.Matrix.Cols
		run.EmbeddingTier = meta.Tier.String()
		run.FeatureNames = append(append([]string{}, result.Names...), semanticNames(run.EmbeddingDimension)...)
	}

	if params.OutputDir != "" && s.artifacts != nil {
		if err := s.artifacts.Write(params.OutputDir, run, tokens, combined); err != nil {
			return nil, fmt.Errorf("failed to write artifacts: %w", err)
		}
		s.logger.Info("特徴行列を書き出しました", "dir", params.OutputDir)
	}

	if params.Persist {
		if s.repo == nil {
			return nil, ErrRepositoryNotConfigured
		}
		if err := s.repo.SaveRun(ctx, run, toRows(tokens, combined)); err != nil {
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
		s.logger.Info("実行記録を保存しました", "run_id", run.ID.String())
	}

	duration := s.now().Sub(start)
	s.logger.Info("特徴抽出が完了",
		"tokens", len(tokens),
		"width", combined.Cols,
		"unknown_categories", result.Report.UnknownCategories,
		"hash_fallbacks", result.Report.HashFallbacks,
		"duration", duration,
	)

	return &RunResult{
		Run:      run,
		Features: result,
		Combined: combined,
		Duration: duration,
	}, nil
}

func (s *Service) embed(ctx context.Context, tokens []features.Token, labels *features.Matrix) (*features.Matrix, error) {
	texts := make([]string, len(tokens))
	for i, tok := range tokens {
		texts[i] = tok.Text
	}

	semantic, err := embedding.EmbedAll(ctx, s.embedder, texts, s.embedOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed tokens: %w", err)
	}

	combined, err := features.Concat(labels, semantic)
	if err != nil {
		return nil, fmt.Errorf("failed to concatenate features: %w", err)
	}
	return combined, nil
}

// GetRun は実行記録を取得する
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	if s.repo == nil {
		return nil, ErrRepositoryNotConfigured
	}
	return s.repo.GetRun(ctx, id)
}

// ListRuns は新しい順に実行記録の要約を返す
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*RunSummary, error) {
	if s.repo == nil {
		return nil, ErrRepositoryNotConfigured
	}
	return s.repo.ListRuns(ctx, limit)
}

// SimilarTo は同じ実行内で ordinal 番目のトークンに特徴が近いトークンを返す
// 基準のトークン自身は結果から除く
func (s *Service) SimilarTo(ctx context.Context, runID uuid.UUID, ordinal, limit int) ([]*SimilarRow, error) {
	if s.repo == nil {
		return nil, ErrRepositoryNotConfigured
	}

	row, err := s.repo.GetRow(ctx, runID, ordinal)
	if err != nil {
		return nil, fmt.Errorf("failed to get row: %w", err)
	}

	similar, err := s.repo.SearchSimilar(ctx, runID, row.Vector, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar rows: %w", err)
	}

	results := make([]*SimilarRow, 0, limit)
	for _, r := range similar {
		if r.Ordinal == ordinal {
			continue
		}
		if len(results) == limit {
			break
		}
		results = append(results, r)
	}
	return results, nil
}
