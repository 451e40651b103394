package features

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// degenerateTolerance は列の最大絶対値に対する σ の相対許容誤差
// これ以下の σ は分散ゼロとみなす
const degenerateTolerance = 1e-12

// Standardize は列ごとに 0 を除外した z-score 標準化を行う
// 0 の要素は統計にも出力にも関与せず 0 のまま残る
// 入力は変更せず、新しい行列と分散ゼロと判定した列の一覧を返す
func Standardize(m *Matrix, workers int) (*Matrix, []int) {
	out := m.Clone()
	if out.Rows == 0 || out.Cols == 0 {
		return out, nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	degenerate := make([]bool, out.Cols)

	var g errgroup.Group
	g.SetLimit(workers)
	for j := range out.Cols {
		g.Go(func() error {
			degenerate[j] = standardizeColumn(out, j)
			return nil
		})
	}
	_ = g.Wait()

	var cols []int
	for j, d := range degenerate {
		if d {
			cols = append(cols, j)
		}
	}
	return out, cols
}

// standardizeColumn は j 列目をその場で標準化する
// σ が許容誤差以下だった場合は true を返す
func standardizeColumn(m *Matrix, j int) bool {
	nonZero := make([]int, 0, m.Rows)
	for i := range m.Rows {
		if m.At(i, j) != 0 {
			nonZero = append(nonZero, i)
		}
	}

	// 全て 0、または非 0 が 1 件のみの場合は分散を推定できないので変更しない
	if len(nonZero) < 2 {
		return false
	}

	var sum, maxAbs float64
	for _, i := range nonZero {
		x := m.At(i, j)
		sum += x
		maxAbs = math.Max(maxAbs, math.Abs(x))
	}
	n := float64(len(nonZero))
	mean := sum / n

	// 極小値の二乗がアンダーフローしないよう最大絶対値で割ってから二乗する
	var sq float64
	for _, i := range nonZero {
		d := (m.At(i, j) - mean) / maxAbs
		sq += d * d
	}
	sigma := math.Sqrt(sq/n) * maxAbs

	if sigma <= degenerateTolerance*maxAbs {
		for _, i := range nonZero {
			m.Set(i, j, 0)
		}
		return true
	}

	for _, i := range nonZero {
		m.Set(i, j, (m.At(i, j)-mean)/sigma)
	}
	return false
}
