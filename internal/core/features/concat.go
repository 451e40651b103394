package features

import "fmt"

// Concat はラベル特徴行列と意味ベクトル行列を列方向に連結する
// ラベル特徴が 0 列の場合は意味ベクトルのみの行列になる
func Concat(labels *Matrix, semantic [][]float32) (*Matrix, error) {
	if labels.Rows != len(semantic) {
		return nil, fmt.Errorf("%w: label features have %d rows, semantic embeddings have %d", ErrRowCountMismatch, labels.Rows, len(semantic))
	}
	if labels.Rows == 0 {
		return NewMatrix(0, labels.Cols), nil
	}

	dim := len(semantic[0])
	out := NewMatrix(labels.Rows, labels.Cols+dim)
	for i := range labels.Rows {
		if len(semantic[i]) != dim {
			return nil, fmt.Errorf("semantic embedding %d has dimension %d, want %d", i, len(semantic[i]), dim)
		}
		row := out.Row(i)
		copy(row, labels.Row(i))
		for k, v := range semantic[i] {
			row[labels.Cols+k] = float64(v)
		}
	}
	return out, nil
}
