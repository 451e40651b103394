package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jinford/token-features/internal/core/ingestion"
	"github.com/jinford/token-features/internal/platform/container"
	"github.com/urfave/cli/v3"
)

// SearchAction は特徴が近いトークンを検索するコマンドのアクション
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	runID, err := uuid.Parse(cmd.String("run"))
	if err != nil {
		return fmt.Errorf("--run が不正です: %w", err)
	}
	ordinal := int(cmd.Int("ordinal"))
	if ordinal < 0 {
		return fmt.Errorf("--ordinal は 0 以上で指定してください")
	}

	appCtx, err := NewAppContext(ctx, cmd, container.WithDatabase())
	if err != nil {
		return err
	}
	defer appCtx.Close()

	results, err := appCtx.Container.Service.SimilarTo(ctx, runID, ordinal, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("検索に失敗: %w", err)
	}

	renderSimilar(os.Stdout, results)
	return nil
}

// renderSimilar は検索結果をテーブル表示する
func renderSimilar(w writer, results []*ingestion.SimilarRow) {
	if len(results) == 0 {
		fmt.Fprintln(w, "該当するトークンはありません")
		return
	}

	table := newTable(w)
	table.Header("Rank", "Ordinal", "Text", "Distance")
	for i, r := range results {
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", r.Ordinal),
			r.Text,
			fmt.Sprintf("%.4f", r.Distance),
		)
	}
	table.Render()
}
