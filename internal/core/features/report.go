package features

// Report は1回の変換で発生した回復可能な異常の集計
// 呼び出し側のデータ品質監視用
type Report struct {
	Tokens     int `json:"tokens"`
	LabelTypes int `json:"label_types"`

	UnknownCategories int            `json:"unknown_categories"`
	UnknownByLabel    map[string]int `json:"unknown_by_label,omitempty"`
	HashFallbacks     int            `json:"hash_fallbacks"`
	HashByLabel       map[string]int `json:"hash_by_label,omitempty"`
	DegenerateColumns []int          `json:"degenerate_columns,omitempty"`
}

func newReport(tokens, labelTypes int) *Report {
	return &Report{
		Tokens:         tokens,
		LabelTypes:     labelTypes,
		UnknownByLabel: make(map[string]int),
		HashByLabel:    make(map[string]int),
	}
}

func (r *Report) recordUnknown(labelType string) {
	r.UnknownCategories++
	r.UnknownByLabel[labelType]++
}

func (r *Report) recordHash(labelType string) {
	r.HashFallbacks++
	r.HashByLabel[labelType]++
}

// HasFallbacks はいずれかのフォールバックが発生したかを返す
func (r *Report) HasFallbacks() bool {
	return r.UnknownCategories > 0 || r.HashFallbacks > 0 || len(r.DegenerateColumns) > 0
}
