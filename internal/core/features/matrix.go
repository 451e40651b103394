package features

import "fmt"

// Matrix は行優先の密行列
// 0 行の行列も Rows/Cols を持つ正しい値として扱う
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

// NewMatrix はゼロ埋めの行列を作成する
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// MatrixFromRows は行スライスから行列を作成する（コピー）
func MatrixFromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return NewMatrix(0, 0), nil
	}
	cols := len(rows[0])
	m := NewMatrix(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), cols)
		}
		copy(m.Row(i), row)
	}
	return m, nil
}

// At は (i, j) 要素を返す
func (m *Matrix) At(i, j int) float64 {
	return m.Data[i*m.Cols+j]
}

// Set は (i, j) 要素を設定する
func (m *Matrix) Set(i, j int, v float64) {
	m.Data[i*m.Cols+j] = v
}

// Row は i 行目のビューを返す（コピーしない）
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Column は j 列目のコピーを返す
func (m *Matrix) Column(j int) []float64 {
	col := make([]float64, m.Rows)
	for i := range m.Rows {
		col[i] = m.Data[i*m.Cols+j]
	}
	return col
}

// Clone は行列のディープコピーを返す
func (m *Matrix) Clone() *Matrix {
	n := &Matrix{Rows: m.Rows, Cols: m.Cols, Data: make([]float64, len(m.Data))}
	copy(n.Data, m.Data)
	return n
}

// ToRows は行スライスに変換する（コピー）
func (m *Matrix) ToRows() [][]float64 {
	rows := make([][]float64, m.Rows)
	for i := range m.Rows {
		rows[i] = append([]float64(nil), m.Row(i)...)
	}
	return rows
}
