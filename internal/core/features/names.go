package features

// FeatureNames は特徴行列の列順に対応する特徴名を返す
// Builder と同じ Schema.LabelTypes() の順序を使う
func FeatureNames(schema *Schema) []string {
	labelTypes := schema.LabelTypes()
	names := make([]string, 0, 2*len(labelTypes))
	for _, labelType := range labelTypes {
		names = append(names, labelType+"_value", labelType+"_confidence")
	}
	return names
}
