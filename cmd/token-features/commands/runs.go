package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jinford/token-features/internal/core/ingestion"
	"github.com/jinford/token-features/internal/platform/container"
	"github.com/urfave/cli/v3"
)

// MigrateAction は特徴ストアのテーブルを作成するコマンドのアクション
func MigrateAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd, container.WithDatabase())
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.Store.Migrate(ctx); err != nil {
		return fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	fmt.Println("マイグレーションが完了しました")
	return nil
}

// RunsListAction は実行記録の一覧を表示するコマンドのアクション
func RunsListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd, container.WithDatabase())
	if err != nil {
		return err
	}
	defer appCtx.Close()

	runs, err := appCtx.Container.Service.ListRuns(ctx, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("実行記録の取得に失敗: %w", err)
	}

	renderRuns(os.Stdout, runs)
	return nil
}

// RunsShowAction は実行記録の詳細を表示するコマンドのアクション
func RunsShowAction(ctx context.Context, cmd *cli.Command) error {
	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("--id が不正です: %w", err)
	}

	appCtx, err := NewAppContext(ctx, cmd, container.WithDatabase())
	if err != nil {
		return err
	}
	defer appCtx.Close()

	run, err := appCtx.Container.Service.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("実行記録の取得に失敗: %w", err)
	}

	renderRunDetail(os.Stdout, run)
	return nil
}

// renderRuns は実行記録の一覧をテーブル表示する
func renderRuns(w writer, runs []*ingestion.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "実行記録はありません")
		return
	}

	table := newTable(w)
	table.Header("Run ID", "Name", "Tokens", "Width", "Embedding", "Created At")
	for _, r := range runs {
		model := r.EmbeddingModel
		if model == "" {
			model = "-"
		}
		table.Append(
			r.ID.String(),
			r.Name,
			fmt.Sprintf("%d", r.TokenCount),
			fmt.Sprintf("%d", r.Width),
			model,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	table.Render()
}

// renderRunDetail は実行記録の詳細を表示する
func renderRunDetail(w writer, run *ingestion.Run) {
	rows := [][]string{
		{"Run ID", run.ID.String()},
		{"名前", run.Name},
		{"作成日時", run.CreatedAt.Format("2006-01-02 15:04:05")},
		{"トークン数", fmt.Sprintf("%d", run.TokenCount)},
		{"特徴次元", fmt.Sprintf("%d (ラベル %d + 意味 %d)", run.Width(), run.LabelWidth, run.EmbeddingDimension)},
		{"ハッシュ", run.HashVersion},
		{"ラベル", strings.Join(run.Schema.LabelTypes(), ", ")},
	}
	if run.EmbeddingModel != "" {
		rows = append(rows, []string{"Embedding", fmt.Sprintf("%s (%s)", run.EmbeddingModel, run.EmbeddingTier)})
	}
	if run.Report != nil {
		rows = append(rows, reportRows(run.Report)...)
	}
	renderKeyValues(w, rows)
}
