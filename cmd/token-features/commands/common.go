package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/token-features/internal/platform/config"
	"github.com/jinford/token-features/internal/platform/container"
	"github.com/jinford/token-features/internal/platform/logger"
	"github.com/urfave/cli/v3"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Container *container.Container
}

// NewAppContext は設定ファイルを読み込み、コンテナを作成する
func NewAppContext(ctx context.Context, cmd *cli.Command, opts ...container.ContainerOption) (*AppContext, error) {
	// 設定の読み込み
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	// ロガーの初期化
	level := cfg.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	appLogger := logger.New(logger.Config{
		Level:  logger.ParseLevel(level),
		Format: cfg.Log.Format,
	})

	// ポリシーファイルの読み込み
	if cmd.IsSet("policy") {
		policy, err := config.LoadPolicy(cmd.String("policy"))
		if err != nil {
			return nil, fmt.Errorf("ポリシーの読み込みに失敗: %w", err)
		}
		opts = append(opts, container.WithPolicy(policy))
	}

	opts = append([]container.ContainerOption{container.WithContainerLogger(appLogger)}, opts...)
	cont, err := container.New(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Config:    cfg,
		Container: cont,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger
	}
	return slog.Default()
}
