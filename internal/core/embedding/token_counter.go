package embedding

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter はテキストのトークン数を数える
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter は tiktoken によるトークンカウンタ
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter は新しい TiktokenCounter を作成する
// cl100k_base エンコーディングを使用する（text-embedding-3 系と互換）
func NewTiktokenCounter() (*TiktokenCounter, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

// CountTokens はテキストのトークン数をカウントする
func (tc *TiktokenCounter) CountTokens(text string) int {
	if tc.encoding == nil {
		return 0
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// EstimateCounter は文字数からトークン数を概算するカウンタ
// tiktoken の辞書を取得できない環境向け
type EstimateCounter struct{}

// CountTokens は3文字を1トークンとして概算する
func (EstimateCounter) CountTokens(text string) int {
	n := len([]rune(text)) / 3
	if n == 0 && text != "" {
		return 1
	}
	return n
}
