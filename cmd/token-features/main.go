package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jinford/token-features/cmd/token-features/commands"
	"github.com/urfave/cli/v3"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func logLevelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "log-level",
		Usage: "ログレベル (debug/info/warn/error)。未指定の場合は LOG_LEVEL",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "token-features",
		Usage: "ラベル注釈付きトークンを機械学習用の数値特徴行列に変換する",
		Commands: []*cli.Command{
			{
				Name:  "encode",
				Usage: "トークンファイルから特徴行列を生成",
				Flags: []cli.Flag{
					envFlag(),
					logLevelFlag(),
					&cli.StringFlag{
						Name:     "input",
						Usage:    "トークンファイルまたはディレクトリ",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "features.csv と metadata.json の出力ディレクトリ",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "実行記録の名前（未指定の場合は入力パス）",
					},
					&cli.StringFlag{
						Name:  "policy",
						Usage: "ラベル分類ポリシーファイル (YAML)。未指定の場合は FEATURE_POLICY_FILE",
					},
					&cli.StringFlag{
						Name:  "metadata",
						Usage: "既存の metadata.json のエンコーディングを再利用する",
					},
					&cli.StringFlag{
						Name:  "embedding",
						Usage: "Embedding プロバイダ (none/hash/openai)。未指定の場合は EMBEDDING_PROVIDER",
					},
					&cli.BoolFlag{
						Name:  "persist",
						Usage: "PostgreSQL に保存する",
					},
				},
				Action: commands.EncodeAction,
			},
			{
				Name:  "schema",
				Usage: "ラベルスキーマとカテゴリ値を表示",
				Flags: []cli.Flag{
					envFlag(),
					logLevelFlag(),
					&cli.StringFlag{
						Name:     "input",
						Usage:    "トークンファイルまたはディレクトリ",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "policy",
						Usage: "ラベル分類ポリシーファイル (YAML)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "JSON 形式で出力",
					},
				},
				Action: commands.SchemaAction,
			},
			{
				Name:  "migrate",
				Usage: "特徴ストアのテーブルを作成",
				Flags: []cli.Flag{
					envFlag(),
					logLevelFlag(),
				},
				Action: commands.MigrateAction,
			},
			{
				Name:  "runs",
				Usage: "保存済みの実行記録",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "実行記録の一覧を表示",
						Flags: []cli.Flag{
							envFlag(),
							logLevelFlag(),
							&cli.IntFlag{
								Name:  "limit",
								Usage: "表示件数",
								Value: 20,
							},
						},
						Action: commands.RunsListAction,
					},
					{
						Name:  "show",
						Usage: "実行記録の詳細を表示",
						Flags: []cli.Flag{
							envFlag(),
							logLevelFlag(),
							&cli.StringFlag{
								Name:     "id",
								Usage:    "実行記録 ID",
								Required: true,
							},
						},
						Action: commands.RunsShowAction,
					},
				},
			},
			{
				Name:  "search",
				Usage: "同じ実行内で特徴が近いトークンを検索",
				Flags: []cli.Flag{
					envFlag(),
					logLevelFlag(),
					&cli.StringFlag{
						Name:     "run",
						Usage:    "実行記録 ID",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "ordinal",
						Usage:    "基準トークンの位置 (0 始まり)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "表示件数",
						Value: 10,
					},
				},
				Action: commands.SearchAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
