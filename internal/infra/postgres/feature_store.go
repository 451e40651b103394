package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/token-features/internal/core/features"
	"github.com/jinford/token-features/internal/core/ingestion"
	"github.com/jinford/token-features/internal/platform/database"
)

// DefaultListLimit は ListRuns の limit 未指定時の件数
const DefaultListLimit = 20

var migrationLockID = database.LockID("token-features", "migrate")

const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS feature_runs (
    id                  UUID PRIMARY KEY,
    name                TEXT NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL,
    feature_names       JSONB NOT NULL,
    label_width         INTEGER NOT NULL,
    embedding_model     TEXT,
    embedding_dimension INTEGER NOT NULL DEFAULT 0,
    embedding_tier      TEXT,
    hash_version        TEXT NOT NULL,
    encoding            JSONB NOT NULL,
    schema              JSONB NOT NULL,
    encoders            JSONB NOT NULL,
    report              JSONB NOT NULL,
    token_count         INTEGER NOT NULL,
    files               JSONB NOT NULL
);

ALTER TABLE feature_runs ADD COLUMN IF NOT EXISTS encoding JSONB NOT NULL DEFAULT '{"null_markers": ["None", "null"], "hash_fallback": true}';

CREATE INDEX IF NOT EXISTS feature_runs_created_at_idx ON feature_runs (created_at DESC);

CREATE TABLE IF NOT EXISTS feature_rows (
    run_id   UUID NOT NULL REFERENCES feature_runs (id) ON DELETE CASCADE,
    ordinal  INTEGER NOT NULL,
    text     TEXT NOT NULL,
    features vector,
    PRIMARY KEY (run_id, ordinal)
);
`

// FeatureStore は ingestion.Repository を実装する PostgreSQL リポジトリ。
// 特徴ベクトルは pgvector の vector 型で保存し、コサイン距離で検索する。
type FeatureStore struct {
	pool *pgxpool.Pool
}

// NewFeatureStore は新しい FeatureStore を返す。
func NewFeatureStore(pool *pgxpool.Pool) *FeatureStore {
	return &FeatureStore{pool: pool}
}

var _ ingestion.Repository = (*FeatureStore)(nil)

// Migrate はテーブルを作成する。複数プロセスから同時に呼ばれてもアドバイザリロックで直列化される。
func (s *FeatureStore) Migrate(ctx context.Context) error {
	_, err := database.Transact(ctx, s.pool, func(tx pgx.Tx) (struct{}, error) {
		if err := database.AcquireXactLock(ctx, tx, migrationLockID); err != nil {
			return struct{}{}, err
		}
		if _, err := tx.Exec(ctx, schemaDDL); err != nil {
			return struct{}{}, fmt.Errorf("failed to apply schema: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// SaveRun は実行記録と全行を1トランザクションで保存する。
func (s *FeatureStore) SaveRun(ctx context.Context, run *ingestion.Run, rows []ingestion.Row) error {
	names, err := MarshalJSONB(run.FeatureNames)
	if err != nil {
		return err
	}
	encoding, err := MarshalJSONB(run.Encoding)
	if err != nil {
		return err
	}
	schema, err := MarshalJSONB(run.Schema)
	if err != nil {
		return err
	}
	encoders, err := MarshalJSONB(run.Encoders)
	if err != nil {
		return err
	}
	report, err := MarshalJSONB(run.Report)
	if err != nil {
		return err
	}
	files := run.Files
	if files == nil {
		files = []string{}
	}
	filesJSON, err := MarshalJSONB(files)
	if err != nil {
		return err
	}

	_, err = database.Transact(ctx, s.pool, func(tx pgx.Tx) (struct{}, error) {
		_, err := tx.Exec(ctx, `
			INSERT INTO feature_runs (
				id, name, created_at, feature_names, label_width,
				embedding_model, embedding_dimension, embedding_tier, hash_version, encoding,
				schema, encoders, report, token_count, files
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			UUIDToPgtype(run.ID), run.Name, run.CreatedAt, names, run.LabelWidth,
			StringToNullableText(run.EmbeddingModel), run.EmbeddingDimension, StringToNullableText(run.EmbeddingTier), run.HashVersion, encoding,
			schema, encoders, report, run.TokenCount, filesJSON,
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return struct{}{}, fmt.Errorf("%w: %s", ingestion.ErrRunAlreadyExists, run.ID)
			}
			return struct{}{}, fmt.Errorf("failed to insert run: %w", err)
		}

		if len(rows) == 0 {
			return struct{}{}, nil
		}

		batch := &pgx.Batch{}
		for _, row := range rows {
			batch.Queue(
				`INSERT INTO feature_rows (run_id, ordinal, text, features) VALUES ($1, $2, $3, $4)`,
				UUIDToPgtype(run.ID), row.Ordinal, row.Text, VectorOrNull(row.Vector),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return struct{}{}, fmt.Errorf("failed to insert rows: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// GetRun は実行記録を取得する。
func (s *FeatureStore) GetRun(ctx context.Context, id uuid.UUID) (*ingestion.Run, error) {
	var (
		runID                           pgtype.UUID
		model, tier                     pgtype.Text
		names, schema, encoders, report []byte
		encoding, files                 []byte
	)
	run := &ingestion.Run{}

	err := s.pool.QueryRow(ctx, `
		SELECT id, name, created_at, feature_names, label_width,
		       embedding_model, embedding_dimension, embedding_tier, hash_version, encoding,
		       schema, encoders, report, token_count, files
		FROM feature_runs
		WHERE id = $1`,
		UUIDToPgtype(id),
	).Scan(
		&runID, &run.Name, &run.CreatedAt, &names, &run.LabelWidth,
		&model, &run.EmbeddingDimension, &tier, &run.HashVersion, &encoding,
		&schema, &encoders, &report, &run.TokenCount, &files,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ingestion.ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.ID = PgtypeToUUID(runID)
	run.EmbeddingModel = PgtextToString(model)
	run.EmbeddingTier = PgtextToString(tier)
	run.Schema = &features.Schema{}
	run.Encoders = &features.EncoderSet{}
	run.Report = &features.Report{}

	for _, f := range []struct {
		data []byte
		dst  any
	}{
		{names, &run.FeatureNames},
		{encoding, &run.Encoding},
		{schema, run.Schema},
		{encoders, run.Encoders},
		{report, run.Report},
		{files, &run.Files},
	} {
		if err := UnmarshalJSONB(f.data, f.dst); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// ListRuns は新しい順に実行記録の要約を返す。
func (s *FeatureStore) ListRuns(ctx context.Context, limit int) ([]*ingestion.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, created_at, token_count, label_width + embedding_dimension, embedding_model
		FROM feature_runs
		ORDER BY created_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var summaries []*ingestion.RunSummary
	for rows.Next() {
		var (
			id        pgtype.UUID
			model     pgtype.Text
			createdAt time.Time
			summary   ingestion.RunSummary
		)
		if err := rows.Scan(&id, &summary.Name, &createdAt, &summary.TokenCount, &summary.Width, &model); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		summary.ID = PgtypeToUUID(id)
		summary.CreatedAt = createdAt
		summary.EmbeddingModel = PgtextToString(model)
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return summaries, nil
}

// GetRow は実行内の ordinal 番目の行を取得する。
func (s *FeatureStore) GetRow(ctx context.Context, runID uuid.UUID, ordinal int) (*ingestion.Row, error) {
	var (
		row    ingestion.Row
		vector *pgvector.Vector
	)
	err := s.pool.QueryRow(ctx, `
		SELECT ordinal, text, features
		FROM feature_rows
		WHERE run_id = $1 AND ordinal = $2`,
		UUIDToPgtype(runID), ordinal,
	).Scan(&row.Ordinal, &row.Text, &vector)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: run %s ordinal %d", ingestion.ErrRowNotFound, runID, ordinal)
		}
		return nil, fmt.Errorf("failed to get row: %w", err)
	}
	row.Vector = VectorToSlice(vector)
	return &row, nil
}

// SearchSimilar は query とのコサイン距離が小さい順に行を返す。
func (s *FeatureStore) SearchSimilar(ctx context.Context, runID uuid.UUID, query []float32, limit int) ([]*ingestion.SimilarRow, error) {
	if len(query) == 0 {
		return []*ingestion.SimilarRow{}, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT ordinal, text, features <=> $2 AS distance
		FROM feature_rows
		WHERE run_id = $1 AND features IS NOT NULL
		ORDER BY distance, ordinal
		LIMIT $3`,
		UUIDToPgtype(runID), pgvector.NewVector(query), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar rows: %w", err)
	}
	defer rows.Close()

	results := []*ingestion.SimilarRow{}
	for rows.Next() {
		var r ingestion.SimilarRow
		if err := rows.Scan(&r.Ordinal, &r.Text, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan similar row: %w", err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate similar rows: %w", err)
	}
	return results, nil
}
