// Package artifact は特徴行列を CSV とメタデータ JSON としてディレクトリに書き出す
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jinford/token-features/internal/core/features"
	"github.com/jinford/token-features/internal/core/ingestion"
)

const (
	// FeaturesFileName は特徴行列の CSV ファイル名
	FeaturesFileName = "features.csv"
	// MetadataFileName はメタデータのファイル名
	MetadataFileName = "metadata.json"
)

// Metadata は metadata.json の内容
// Schema と Encoders を保存しておけば同じエンコーディングを新しいバッチに適用できる
type Metadata struct {
	RunID              string               `json:"run_id"`
	Name               string               `json:"name"`
	CreatedAt          time.Time            `json:"created_at"`
	FeatureNames       []string             `json:"feature_names"`
	LabelWidth         int                  `json:"label_width"`
	EmbeddingModel     string               `json:"embedding_model,omitempty"`
	EmbeddingDimension int                  `json:"embedding_dimension"`
	EmbeddingTier      string               `json:"embedding_tier,omitempty"`
	HashVersion        string               `json:"hash_version"`
	Encoding           *features.Encoding   `json:"encoding"`
	Schema             *features.Schema     `json:"schema"`
	Encoders           *features.EncoderSet `json:"encoders"`
	Report             *features.Report     `json:"report"`
	TokenCount         int                  `json:"token_count"`
	Files              []string             `json:"files,omitempty"`
}

// Writer は ingestion.ArtifactWriter のファイル実装
type Writer struct{}

// NewWriter は新しい Writer を作成する
func NewWriter() *Writer {
	return &Writer{}
}

var _ ingestion.ArtifactWriter = (*Writer)(nil)

// Write は dir に features.csv と metadata.json を書き出す
// CSV の1列目はトークンのテキスト、以降は FeatureNames の順
func (w *Writer) Write(dir string, run *ingestion.Run, tokens []features.Token, m *features.Matrix) error {
	if len(tokens) != m.Rows {
		return fmt.Errorf("%w: %d tokens, %d rows", features.ErrRowCountMismatch, len(tokens), m.Rows)
	}
	if len(run.FeatureNames) != m.Cols {
		return fmt.Errorf("feature names (%d) do not match matrix columns (%d)", len(run.FeatureNames), m.Cols)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeCSV(filepath.Join(dir, FeaturesFileName), run.FeatureNames, tokens, m); err != nil {
		return err
	}
	return WriteMetadata(filepath.Join(dir, MetadataFileName), MetadataOf(run))
}

func writeCSV(path string, names []string, tokens []features.Token, m *features.Matrix) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, closeErr)
		}
	}()

	cw := csv.NewWriter(file)
	header := append([]string{"text"}, names...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, m.Cols+1)
	for i := 0; i < m.Rows; i++ {
		record[0] = tokens[i].Text
		for j, v := range m.Row(i) {
			record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// MetadataOf は実行記録からメタデータを作成する
func MetadataOf(run *ingestion.Run) Metadata {
	return Metadata{
		RunID:              run.ID.String(),
		Name:               run.Name,
		CreatedAt:          run.CreatedAt,
		FeatureNames:       run.FeatureNames,
		LabelWidth:         run.LabelWidth,
		EmbeddingModel:     run.EmbeddingModel,
		EmbeddingDimension: run.EmbeddingDimension,
		EmbeddingTier:      run.EmbeddingTier,
		HashVersion:        run.HashVersion,
		Encoding:           &run.Encoding,
		Schema:             run.Schema,
		Encoders:           run.Encoders,
		Report:             run.Report,
		TokenCount:         run.TokenCount,
		Files:              run.Files,
	}
}

// WriteMetadata は metadata.json を書き出す
func WriteMetadata(path string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// ReadMetadata は metadata.json を読み込む
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	meta := &Metadata{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if meta.Schema == nil || meta.Encoders == nil || meta.Encoding == nil {
		return nil, fmt.Errorf("metadata %s has no fitted encoding", path)
	}
	if meta.HashVersion != features.HashVersion {
		return nil, fmt.Errorf("metadata %s uses hash %q, want %q", path, meta.HashVersion, features.HashVersion)
	}
	return meta, nil
}

// Fitted はメタデータに保存されたエンコーディングを復元する
// null マーカーとハッシュ代替の設定は opts ではなく保存された値を使う
func (m *Metadata) Fitted(opts features.Options) *features.Fitted {
	return features.NewFitted(m.Schema, m.Encoders, *m.Encoding, opts)
}
