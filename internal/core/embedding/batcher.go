package embedding

// Batcher はテキスト列を件数とトークン数の上限でバッチに分割する
type Batcher struct {
	maxItems  int
	maxTokens int
	counter   TokenCounter
}

// NewBatcher は新しい Batcher を作成する
// maxTokens が 0 以下、または counter が nil の場合はトークン上限を適用しない
func NewBatcher(maxItems, maxTokens int, counter TokenCounter) *Batcher {
	if maxItems <= 0 {
		maxItems = MinBatchSize
	}
	if counter == nil {
		maxTokens = 0
	}
	return &Batcher{maxItems: maxItems, maxTokens: maxTokens, counter: counter}
}

// Split は入力インデックスのバッチ列を返す（入力順を保つ）
// 単独で上限を超えるテキストは1件だけのバッチにする
func (b *Batcher) Split(texts []string) [][]int {
	var batches [][]int
	var current []int
	tokens := 0

	for i, text := range texts {
		n := 0
		if b.maxTokens > 0 {
			n = b.counter.CountTokens(text)
		}

		full := len(current) >= b.maxItems
		overBudget := b.maxTokens > 0 && len(current) > 0 && tokens+n > b.maxTokens
		if full || overBudget {
			batches = append(batches, current)
			current = nil
			tokens = 0
		}

		current = append(current, i)
		tokens += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
