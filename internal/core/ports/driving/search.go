package driving

import (
	"context"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
)

// SearchService answers similarity queries against the vector index.
// Unlike indexing, search is a direct request/response operation: all
// errors surface synchronously to the caller.
type SearchService interface {
	// Search embeds the query text under the active model version and
	// returns at most opts.TopK scored results, best first.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.QueryResult, error)

	// SearchVector runs a similarity query with a caller-supplied
	// vector. Its dimensionality must match the active model version or
	// the call fails with domain.ErrDimensionMismatch.
	SearchVector(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.QueryResult, error)
}
