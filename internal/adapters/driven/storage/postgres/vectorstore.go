package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
)

// Ensure vectorStore implements the interface.
var _ driven.VectorStore = (*vectorStore)(nil)

// vectorStore implements driven.VectorStore on the shared pool.
type vectorStore struct {
	store *Store
}

// Upsert atomically replaces any existing record for the document.
// A single INSERT ... ON CONFLICT statement means concurrent readers
// see either the old record or the new one, never a gap or a torn row.
func (v *vectorStore) Upsert(ctx context.Context, record domain.EmbeddingRecord) error {
	if record.DocumentID == "" {
		return fmt.Errorf("%w: record has no document ID", domain.ErrInvalidArgument)
	}
	if len(record.Vector) == 0 {
		return fmt.Errorf("%w: record has no vector", domain.ErrInvalidArgument)
	}

	_, err := v.store.pool.Exec(ctx, `
		INSERT INTO embeddings (document_id, embedding, model_version, content_hash_at_index, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model_version = EXCLUDED.model_version,
			content_hash_at_index = EXCLUDED.content_hash_at_index,
			created_at = EXCLUDED.created_at`,
		record.DocumentID,
		pgvector.NewVector(record.Vector),
		record.ModelVersion,
		record.ContentHashAtIndex,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// Get returns the current record for a document.
func (v *vectorStore) Get(ctx context.Context, documentID string) (*domain.EmbeddingRecord, error) {
	var record domain.EmbeddingRecord
	var embedding pgvector.Vector

	err := v.store.pool.QueryRow(ctx, `
		SELECT document_id, embedding, model_version, content_hash_at_index, created_at
		FROM embeddings WHERE document_id = $1`,
		documentID,
	).Scan(&record.DocumentID, &embedding, &record.ModelVersion,
		&record.ContentHashAtIndex, &record.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding: %w", err)
	}

	record.Vector = embedding.Slice()
	return &record, nil
}

// Delete removes the record. Absent records are a no-op.
func (v *vectorStore) Delete(ctx context.Context, documentID string) error {
	if _, err := v.store.pool.Exec(ctx,
		`DELETE FROM embeddings WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	return nil
}

// Search returns at most topK hits ordered by descending score, ties
// broken by document ID ascending. The ORDER BY distance clause drives
// the HNSW index; the secondary document_id sort keeps equal distances
// deterministic.
func (v *vectorStore) Search(ctx context.Context, vector []float32, modelVersion string, topK int, filter driven.SearchFilter) ([]driven.VectorHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top-k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}

	scoreExpr := `1 - (embedding <=> $1)`
	distanceExpr := `embedding <=> $1`
	if v.store.metric == domain.MetricInnerProduct {
		scoreExpr = `-(embedding <#> $1)`
		distanceExpr = `embedding <#> $1`
	}

	query := fmt.Sprintf(`
		SELECT document_id, %s AS score
		FROM embeddings
		WHERE model_version = $2`, scoreExpr)
	args := []any{pgvector.NewVector(vector), modelVersion}

	if len(filter.DocumentIDs) > 0 {
		query += ` AND document_id = ANY($3)`
		args = append(args, filter.DocumentIDs)
	}
	query += fmt.Sprintf(` ORDER BY %s ASC, document_id ASC LIMIT %d`, distanceExpr, topK)

	rows, err := v.store.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var hit driven.VectorHit
		if err := rows.Scan(&hit.DocumentID, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}

// VerifyMetric checks the persisted index structure was built for the
// given metric.
func (v *vectorStore) VerifyMetric(ctx context.Context, metric domain.Metric) error {
	var storedMetric string
	err := v.store.pool.QueryRow(ctx,
		`SELECT metric FROM index_config WHERE id = 1`).Scan(&storedMetric)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: index config missing", domain.ErrMetricMismatch)
	}
	if err != nil {
		return fmt.Errorf("read index config: %w", err)
	}
	if storedMetric != metric.String() {
		return fmt.Errorf("%w: index was built for %s, configured %s",
			domain.ErrMetricMismatch, storedMetric, metric)
	}
	return nil
}

// Ping validates the database is reachable.
func (v *vectorStore) Ping(ctx context.Context) error {
	return v.store.Ping(ctx)
}

// Close is a no-op; the shared pool is closed by the parent Store.
func (v *vectorStore) Close() error {
	return nil
}
