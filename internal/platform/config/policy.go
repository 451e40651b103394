package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jinford/token-features/internal/core/features"
)

// Policy はラベル分類ポリシーファイル（YAML）の内容
//
//	max_numeric_cardinality: 10
//	null_markers: ["None", "null", "N/A"]
//	hash_fallback: true
//	categorical: [pos]
//	continuous: [score]
type Policy struct {
	MaxNumericCardinality *int     `yaml:"max_numeric_cardinality"`
	NullMarkers           []string `yaml:"null_markers"`
	HashFallback          *bool    `yaml:"hash_fallback"`
	Categorical           []string `yaml:"categorical"`
	Continuous            []string `yaml:"continuous"`
}

// LoadPolicy はポリシーファイルを読み込みます
// path が空の場合は空のポリシーを返します
// 指定したファイルが存在しない場合は os.ErrNotExist を含むエラーを返します
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return &Policy{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid policy file %s: %w", path, err)
	}
	return &p, nil
}

func (p *Policy) validate() error {
	if p.MaxNumericCardinality != nil && *p.MaxNumericCardinality < 0 {
		return fmt.Errorf("max_numeric_cardinality must be >= 0")
	}
	for _, label := range p.Categorical {
		if slices.Contains(p.Continuous, label) {
			return fmt.Errorf("label %q is both categorical and continuous", label)
		}
	}
	return nil
}

// FeatureOptions は環境変数の設定にポリシーを重ねた特徴抽出オプションを返します
// ポリシーファイルの値が環境変数より優先されます
func (c FeatureConfig) FeatureOptions(p *Policy) features.Options {
	opts := features.DefaultOptions()
	opts.NullMarkers = c.NullMarkers
	opts.HashFallback = c.HashFallback
	opts.StandardizeWorkers = c.StandardizeWorkers
	threshold := c.MaxNumericCardinality

	if p != nil {
		if p.MaxNumericCardinality != nil {
			threshold = *p.MaxNumericCardinality
		}
		if p.NullMarkers != nil {
			opts.NullMarkers = p.NullMarkers
		}
		if p.HashFallback != nil {
			opts.HashFallback = *p.HashFallback
		}
	}

	base := features.ThresholdPolicy{MaxNumericCardinality: threshold}
	opts.Policy = base
	if p != nil && (len(p.Categorical) > 0 || len(p.Continuous) > 0) {
		opts.Policy = overridePolicy(base, p.Categorical, p.Continuous)
	}
	return opts
}

// overridePolicy はラベル種別ごとの指定を優先する分類ポリシーを返します
// null を含むラベル種別は continuous 指定があってもカテゴリとして扱います
func overridePolicy(base features.ClassificationPolicy, categorical, continuous []string) features.ClassificationPolicy {
	return features.PolicyFunc(func(stats features.LabelStats) bool {
		if stats.NullCount > 0 {
			return true
		}
		if slices.Contains(categorical, stats.LabelType) {
			return true
		}
		if slices.Contains(continuous, stats.LabelType) {
			return false
		}
		return base.IsCategorical(stats)
	})
}
