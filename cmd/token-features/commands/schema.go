package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jinford/token-features/internal/core/features"
	"github.com/urfave/cli/v3"
)

// SchemaAction はラベルスキーマとカテゴリ値を表示するコマンドのアクション
func SchemaAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	tokens, _, err := appCtx.Container.Loader.Load(cmd.String("input"))
	if err != nil {
		return fmt.Errorf("トークンの読み込みに失敗: %w", err)
	}

	fitted := features.Fit(tokens, appCtx.Container.FeatureOptions)

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"schema":   fitted.Schema,
			"encoders": fitted.Encoders,
			"features": features.FeatureNames(fitted.Schema),
		})
	}

	renderSchema(os.Stdout, fitted.Schema)
	return nil
}

// maxShownValues はテーブルに表示するカテゴリ値の最大数
const maxShownValues = 8

// renderSchema はスキーマをテーブル表示する
func renderSchema(w writer, schema *features.Schema) {
	if schema.Len() == 0 {
		fmt.Fprintln(w, "ラベルはありません")
		return
	}

	table := newTable(w)
	table.Header("Label", "Kind", "Null", "Values", "Known Values")
	for _, labelType := range schema.LabelTypes() {
		ls, _ := schema.Label(labelType)
		kind := "continuous"
		if ls.IsCategorical {
			kind = "categorical"
		}
		values := ls.KnownValues
		suffix := ""
		if len(values) > maxShownValues {
			values = values[:maxShownValues]
			suffix = ", ..."
		}
		table.Append(
			labelType,
			kind,
			fmt.Sprintf("%t", ls.HasNull),
			fmt.Sprintf("%d", len(ls.KnownValues)),
			strings.Join(values, ", ")+suffix,
		)
	}
	table.Render()
}
