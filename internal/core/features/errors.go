package features

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaValidation はバッチ全体を失敗させるスキーマ不整合を表す
	ErrSchemaValidation = errors.New("schema validation failed")

	// ErrRowCountMismatch は連結対象の行数が一致しない場合のエラー
	ErrRowCountMismatch = errors.New("row count mismatch")

	// ErrUnknownLabelType はスキーマに存在しないラベル種別を参照した場合のエラー
	ErrUnknownLabelType = errors.New("unknown label type")

	// ErrIndexOutOfRange はエンコーダの範囲外インデックスを復号しようとした場合のエラー
	ErrIndexOutOfRange = errors.New("category index out of range")
)

// SchemaValidationError はトークンの注釈がスキーマと一致しない場合のエラー
// コア内で唯一の致命的エラーで、部分的な行列は返さない
type SchemaValidationError struct {
	TokenIndex int
	LabelType  string
	Reason     string
}

// Error は error インターフェースの実装
func (e *SchemaValidationError) Error() string {
	if e.LabelType == "" {
		return fmt.Sprintf("%s: token %d: %s", ErrSchemaValidation, e.TokenIndex, e.Reason)
	}
	return fmt.Sprintf("%s: token %d: label %q: %s", ErrSchemaValidation, e.TokenIndex, e.LabelType, e.Reason)
}

// Unwrap は errors.Is(err, ErrSchemaValidation) を成立させる
func (e *SchemaValidationError) Unwrap() error {
	return ErrSchemaValidation
}
