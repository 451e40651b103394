package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/jinford/token-features/internal/core/features"
	"github.com/jinford/token-features/internal/core/ingestion"
	"github.com/jinford/token-features/internal/infra/artifact"
	"github.com/jinford/token-features/internal/platform/container"
	"github.com/urfave/cli/v3"
)

// EncodeAction はトークンファイルから特徴行列を生成するコマンドのアクション
func EncodeAction(ctx context.Context, cmd *cli.Command) error {
	persist := cmd.Bool("persist")

	var opts []container.ContainerOption
	if cmd.IsSet("embedding") {
		opts = append(opts, container.WithEmbeddingProvider(cmd.String("embedding")))
	}
	if persist {
		opts = append(opts, container.WithDatabase())
	}

	appCtx, err := NewAppContext(ctx, cmd, opts...)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	params := ingestion.RunParams{
		Input:     cmd.String("input"),
		Name:      cmd.String("name"),
		OutputDir: cmd.String("output"),
		Persist:   persist,
	}

	if path := cmd.String("metadata"); path != "" {
		meta, err := artifact.ReadMetadata(path)
		if err != nil {
			return err
		}
		params.Fitted = meta.Fitted(appCtx.Container.FeatureOptions)
		appCtx.Logger().Info("既存のエンコーディングを再利用します", "metadata", path, "run_id", meta.RunID)
	}

	result, err := appCtx.Container.Service.Run(ctx, params)
	if err != nil {
		return fmt.Errorf("特徴抽出に失敗: %w", err)
	}

	renderRunResult(os.Stdout, result)
	return nil
}

// renderRunResult は実行結果の要約を表示する
func renderRunResult(w writer, result *ingestion.RunResult) {
	run := result.Run
	rows := [][]string{
		{"Run ID", run.ID.String()},
		{"名前", run.Name},
		{"トークン数", fmt.Sprintf("%d", run.TokenCount)},
		{"ラベル種別数", fmt.Sprintf("%d", run.Schema.Len())},
		{"特徴次元", fmt.Sprintf("%d (ラベル %d + 意味 %d)", run.Width(), run.LabelWidth, run.EmbeddingDimension)},
	}
	if run.EmbeddingModel != "" {
		rows = append(rows, []string{"Embedding", fmt.Sprintf("%s (%s)", run.EmbeddingModel, run.EmbeddingTier)})
	}
	rows = append(rows, reportRows(result.Features.Report)...)
	rows = append(rows, []string{"処理時間", result.Duration.String()})

	renderKeyValues(w, rows)
}

func reportRows(report *features.Report) [][]string {
	return [][]string{
		{"未知カテゴリ", fmt.Sprintf("%d", report.UnknownCategories)},
		{"ハッシュ代替", fmt.Sprintf("%d", report.HashFallbacks)},
		{"退化列", fmt.Sprintf("%v", report.DegenerateColumns)},
	}
}
