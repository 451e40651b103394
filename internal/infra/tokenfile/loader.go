// Package tokenfile はアノテーション済みトークン列を JSON ファイルから読み込む
package tokenfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jinford/token-features/internal/core/features"
)

// DefaultEnvelopeKeys はオブジェクト形式のファイルでトークン配列を探すキー
var DefaultEnvelopeKeys = []string{"tokens"}

var (
	// ErrUnknownEnvelope はオブジェクト形式だがトークン配列のキーが見つからない場合のエラー
	ErrUnknownEnvelope = errors.New("unknown token file envelope")
	// ErrNoTokenFiles はディレクトリに読み込み対象のファイルが無い場合のエラー
	ErrNoTokenFiles = errors.New("no token files found")
)

// Loader はトークンファイルのローダー
type Loader struct {
	envelopeKeys []string
	logger       *slog.Logger
}

// LoaderOption は Loader のオプション設定
type LoaderOption func(*Loader)

// WithEnvelopeKeys はトークン配列を探すキーを上書きする
func WithEnvelopeKeys(keys ...string) LoaderOption {
	return func(l *Loader) {
		if len(keys) > 0 {
			l.envelopeKeys = keys
		}
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader は新しい Loader を作成する
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		envelopeKeys: DefaultEnvelopeKeys,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Decode は JSON 配列、またはトークン配列を包んだオブジェクトを読み込む
func (l *Loader) Decode(r io.Reader) ([]features.Token, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokens: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []features.Token{}, nil
	}

	switch trimmed[0] {
	case '[':
		return decodeTokens(trimmed)
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode token envelope: %w", err)
		}
		for _, key := range l.envelopeKeys {
			if raw, ok := envelope[key]; ok {
				return decodeTokens(raw)
			}
		}
		return nil, fmt.Errorf("%w: none of keys %v present", ErrUnknownEnvelope, l.envelopeKeys)
	default:
		return nil, fmt.Errorf("%w: expected JSON array or object", ErrUnknownEnvelope)
	}
}

func decodeTokens(raw []byte) ([]features.Token, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var tokens []features.Token
	if err := dec.Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode tokens: %w", err)
	}
	if tokens == nil {
		tokens = []features.Token{}
	}
	return tokens, nil
}

// LoadFile は1つのトークンファイルを読み込む
func (l *Loader) LoadFile(path string) ([]features.Token, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer file.Close()

	tokens, err := l.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tokens, nil
}

// LoadDir は dir 配下の *.json をパス順に読み込み、1つのトークン列に連結する
// .featureignore にマッチするパスはスキップする
func (l *Loader) LoadDir(dir string) ([]features.Token, []string, error) {
	filter, err := NewIgnoreFilter(dir)
	if err != nil {
		return nil, nil, err
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if filter.ShouldIgnore(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			l.logger.Debug("トークンファイルをスキップ", "path", rel)
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w in %s", ErrNoTokenFiles, dir)
	}
	sort.Strings(files)

	tokens := []features.Token{}
	for _, path := range files {
		fileTokens, err := l.LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		tokens = append(tokens, fileTokens...)
	}

	l.logger.Info("トークンファイルを読み込みました", "files", len(files), "tokens", len(tokens))
	return tokens, files, nil
}

// Load はパスがディレクトリなら LoadDir、ファイルなら LoadFile を呼ぶ
func (l *Loader) Load(path string) ([]features.Token, []string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat input: %w", err)
	}
	if info.IsDir() {
		return l.LoadDir(path)
	}
	tokens, err := l.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return tokens, []string{path}, nil
}
