package features

// ann は注釈を作成するテストヘルパー
func ann(v Value, confidence float64) LabelAnnotation {
	return LabelAnnotation{Value: v, Confidence: confidence}
}

// tok はトークンを作成するテストヘルパー
func tok(text string, labels map[string]LabelAnnotation) Token {
	return Token{Text: text, Labels: labels}
}
