package driven

import (
	"context"
	"time"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
)

// QueryCache memoises recent query results keyed by fingerprint.
//
// The indexing pipeline invalidates it on every stored or deleted
// embedding; entries additionally expire by TTL so staleness stays
// bounded even if an invalidation is missed. Per-key operations are
// atomic under concurrent access.
type QueryCache interface {
	// Get returns the cached results for a fingerprint, or
	// domain.ErrNotFound on a miss.
	Get(ctx context.Context, fingerprint string) ([]domain.QueryResult, error)

	// Put stores results under a fingerprint with the given TTL.
	Put(ctx context.Context, fingerprint string, results []domain.QueryResult, ttl time.Duration) error

	// Invalidate drops entries that may reference the document. The
	// implementation may invalidate coarsely (the whole cache) since
	// any query result can reference any document.
	Invalidate(ctx context.Context, documentID string) error

	// Ping validates the cache is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
