package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// OpenAI設定（Embeddings用）
	OpenAI OpenAIConfig

	// 特徴抽出設定
	Features FeatureConfig

	// Embedding生成設定
	Embedding EmbeddingConfig

	// ログ設定
	Log LogConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	EmbeddingModel     string
	EmbeddingDimension int
}

// FeatureConfig は特徴抽出の設定
type FeatureConfig struct {
	MaxNumericCardinality int
	NullMarkers           []string
	HashFallback          bool
	StandardizeWorkers    int
	PolicyFile            string   // 空の場合は使用しない
	EnvelopeKeys          []string // トークンファイルのエンベロープキー
}

// EmbeddingConfig はEmbedding生成の設定
type EmbeddingConfig struct {
	Provider       string // "none", "hash", "openai"
	BatchSize      int
	MaxBatchTokens int
	HashDimension  int
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string
	Format string
}

// Embedding プロバイダ名
const (
	ProviderNone   = "none"
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
)

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "features"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "features"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
		},
		Features: FeatureConfig{
			MaxNumericCardinality: getEnvAsInt("FEATURE_MAX_NUMERIC_CARDINALITY", 10),
			NullMarkers:           getEnvAsList("FEATURE_NULL_MARKERS", []string{"None", "null"}),
			HashFallback:          getEnvAsBool("FEATURE_HASH_FALLBACK", true),
			StandardizeWorkers:    getEnvAsInt("FEATURE_STANDARDIZE_WORKERS", 0),
			PolicyFile:            getEnv("FEATURE_POLICY_FILE", ""),
			EnvelopeKeys:          getEnvAsList("TOKEN_ENVELOPE_KEYS", []string{"tokens"}),
		},
		Embedding: EmbeddingConfig{
			Provider:       strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderNone)),
			BatchSize:      getEnvAsInt("EMBEDDING_BATCH_SIZE", 100),
			MaxBatchTokens: getEnvAsInt("EMBEDDING_MAX_BATCH_TOKENS", 8000),
			HashDimension:  getEnvAsInt("EMBEDDING_HASH_DIMENSION", 64),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証します
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case ProviderNone, ProviderHash, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q (want none, hash or openai)", c.Embedding.Provider)
	}
	if c.Features.MaxNumericCardinality < 0 {
		return fmt.Errorf("FEATURE_MAX_NUMERIC_CARDINALITY must be >= 0, got %d", c.Features.MaxNumericCardinality)
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数をスライスとして取得します
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
