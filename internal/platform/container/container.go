package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/token-features/internal/core/embedding"
	"github.com/jinford/token-features/internal/core/features"
	"github.com/jinford/token-features/internal/core/ingestion"
	"github.com/jinford/token-features/internal/infra/artifact"
	"github.com/jinford/token-features/internal/infra/openai"
	"github.com/jinford/token-features/internal/infra/postgres"
	"github.com/jinford/token-features/internal/infra/tokenfile"
	"github.com/jinford/token-features/internal/platform/config"
	"github.com/jinford/token-features/internal/platform/database"
)

// Container はコマンドから使う依存関係を保持する。
type Container struct {
	Config         *config.Config
	Logger         *slog.Logger
	FeatureOptions features.Options
	Loader         *tokenfile.Loader
	Embedder       embedding.Embedder     // プロバイダが none の場合は nil
	Database       *database.DB           // WithDatabase を指定しない場合は nil
	Store          *postgres.FeatureStore // Database が nil の場合は nil
	Service        *ingestion.Service
}

type containerOptions struct {
	logger       *slog.Logger
	embedder     embedding.Embedder
	provider     string
	withDatabase bool
	policy       *config.Policy
}

// ContainerOption は Container 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder embedding.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithEmbeddingProvider は設定ファイルの Embedding プロバイダを上書きする
func WithEmbeddingProvider(provider string) ContainerOption {
	return func(opts *containerOptions) {
		opts.provider = provider
	}
}

// WithDatabase はデータベースに接続し FeatureStore を有効にする
func WithDatabase() ContainerOption {
	return func(opts *containerOptions) {
		opts.withDatabase = true
	}
}

// WithPolicy はラベル分類ポリシーを設定する
func WithPolicy(policy *config.Policy) ContainerOption {
	return func(opts *containerOptions) {
		opts.policy = policy
	}
}

// New は設定から Container を生成する。
func New(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	policy := options.policy
	if policy == nil {
		p, err := config.LoadPolicy(cfg.Features.PolicyFile)
		if err != nil {
			return nil, err
		}
		policy = p
	}
	featOpts := cfg.Features.FeatureOptions(policy)
	featOpts.Logger = options.logger

	loader := tokenfile.NewLoader(
		tokenfile.WithEnvelopeKeys(cfg.Features.EnvelopeKeys...),
		tokenfile.WithLogger(options.logger),
	)

	embedder := options.embedder
	if embedder == nil {
		provider := cfg.Embedding.Provider
		if options.provider != "" {
			provider = options.provider
		}
		e, err := newEmbedder(cfg, provider)
		if err != nil {
			return nil, err
		}
		embedder = e
	}

	c := &Container{
		Config:         cfg,
		Logger:         options.logger,
		FeatureOptions: featOpts,
		Loader:         loader,
		Embedder:       embedder,
	}

	if options.withDatabase {
		db, err := database.New(ctx, database.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		c.Database = db
		c.Store = postgres.NewFeatureStore(db.Pool)
	}

	embedOpts := embedding.Options{
		BatchSize:      cfg.Embedding.BatchSize,
		MaxBatchTokens: cfg.Embedding.MaxBatchTokens,
		Logger:         options.logger,
	}
	// トークン上限を使う場合のみ tiktoken の辞書を読み込む
	if embedder != nil && cfg.Embedding.MaxBatchTokens > 0 {
		embedOpts.Counter = newTokenCounter(options.logger)
	}

	serviceOpts := []ingestion.ServiceOption{
		ingestion.WithArtifactWriter(artifact.NewWriter()),
		ingestion.WithFeatureOptions(featOpts),
		ingestion.WithEmbeddingOptions(embedOpts),
		ingestion.WithLogger(options.logger),
	}
	if embedder != nil {
		serviceOpts = append(serviceOpts, ingestion.WithEmbedder(embedder))
	}
	if c.Store != nil {
		serviceOpts = append(serviceOpts, ingestion.WithRepository(c.Store))
	}
	c.Service = ingestion.NewService(loader, serviceOpts...)

	return c, nil
}

// Close は保持しているリソースを解放する。
func (c *Container) Close() {
	if c.Database != nil {
		c.Database.Close()
	}
}

// newEmbedder はプロバイダ名から Embedder を生成する。none の場合は nil を返す。
func newEmbedder(cfg *config.Config, provider string) (embedding.Embedder, error) {
	switch provider {
	case "", config.ProviderNone:
		return nil, nil
	case config.ProviderHash:
		return embedding.NewHashEmbedder(cfg.Embedding.HashDimension), nil
	case config.ProviderOpenAI:
		opts := []openai.EmbedderOption{
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		e, err := openai.NewEmbedder(cfg.OpenAI.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("Embedder 初期化に失敗しました: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}

// newTokenCounter は tiktoken のカウンタを返す。辞書を取得できない場合は概算カウンタを使う。
func newTokenCounter(logger *slog.Logger) embedding.TokenCounter {
	counter, err := embedding.NewTiktokenCounter()
	if err != nil {
		logger.Warn("tiktoken を利用できないためトークン数を概算します", "error", err)
		return embedding.EstimateCounter{}
	}
	return counter
}
