package driven

import (
	"context"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
)

// SearchFilter restricts a vector search at the store level.
type SearchFilter struct {
	// DocumentIDs, when non-empty, limits hits to these documents.
	DocumentIDs []string
}

// VectorHit is a raw similarity hit from the store.
type VectorHit struct {
	// DocumentID is the matched document.
	DocumentID string

	// Score is the similarity under the configured metric, higher is
	// more similar (cosine similarity lies in [-1, 1]).
	Score float64
}

// VectorStore owns persisted embedding records and nearest-neighbour
// search over them. Only the indexing pipeline writes records.
type VectorStore interface {
	// Upsert atomically replaces any existing record for the document.
	// Concurrent readers never observe a partially written vector or a
	// gap between delete and insert.
	Upsert(ctx context.Context, record domain.EmbeddingRecord) error

	// Get returns the current record for a document, or
	// domain.ErrNotFound if none exists.
	Get(ctx context.Context, documentID string) (*domain.EmbeddingRecord, error)

	// Delete removes the record. Deleting an absent record is a no-op.
	Delete(ctx context.Context, documentID string) error

	// Search returns at most topK hits ordered by descending score,
	// ties broken by document ID ascending, restricted to the given
	// model version and filter. topK must be positive.
	Search(ctx context.Context, vector []float32, modelVersion string, topK int, filter SearchFilter) ([]VectorHit, error)

	// VerifyMetric checks the persisted index structure was built for
	// the given metric. A mismatch is domain.ErrMetricMismatch; it is
	// checked once at startup, never at query time.
	VerifyMetric(ctx context.Context, metric domain.Metric) error

	// Ping validates the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
