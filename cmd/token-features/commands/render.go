package commands

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

type writer = io.Writer

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewWriter(w)
}

// renderKeyValues は項目と値の2列テーブルを表示する
func renderKeyValues(w io.Writer, rows [][]string) {
	table := newTable(w)
	table.Header("項目", "値")
	for _, row := range rows {
		table.Append(row[0], row[1])
	}
	table.Render()
}
