package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driving"
	"github.com/historia-labs/historia-indexing/internal/logger"
)

// Ensure Searcher implements the interface.
var _ driving.SearchService = (*Searcher)(nil)

// DefaultCacheTTL bounds how long a cached result may outlive the index
// state it was computed from.
const DefaultCacheTTL = 5 * time.Minute

// overfetchFactor is how many times TopK we pull from the store when a
// post-filter predicate may discard hits.
const overfetchFactor = 3

// Searcher is the query engine: it embeds textual queries, runs the
// nearest-neighbour search, applies caller post-filters and returns
// deterministically ranked results.
type Searcher struct {
	vectors  driven.VectorStore
	gateway  *Gateway
	cache    driven.QueryCache // optional
	cacheTTL time.Duration
}

// NewSearcher creates the query engine. The cache is optional.
func NewSearcher(vectors driven.VectorStore, gateway *Gateway, cache driven.QueryCache, cacheTTL time.Duration) *Searcher {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Searcher{
		vectors:  vectors,
		gateway:  gateway,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Search embeds the query text and returns at most opts.TopK results.
func (s *Searcher) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.QueryResult, error) {
	if err := validateTopK(opts.TopK); err != nil {
		return nil, err
	}
	if domain.NormalizeText(query) == "" {
		return nil, fmt.Errorf("%w: query is empty after normalisation", domain.ErrInvalidInput)
	}

	logger.Section("Search")
	logger.Debug("Query: %q, top-k: %d", query, opts.TopK)

	fingerprint := domain.FingerprintText(query, s.gateway.ModelVersion(), opts)
	if cached, ok := s.cacheGet(ctx, fingerprint, opts); ok {
		logger.Debug("Cache hit for fingerprint %.12s", fingerprint)
		return cached, nil
	}

	vector, err := s.gateway.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return s.run(ctx, vector, opts, fingerprint)
}

// SearchVector runs a similarity query with a caller-supplied vector.
func (s *Searcher) SearchVector(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.QueryResult, error) {
	if err := validateTopK(opts.TopK); err != nil {
		return nil, err
	}
	if len(vector) != s.gateway.Dimensions() {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, active model %s expects %d",
			domain.ErrDimensionMismatch, len(vector), s.gateway.ModelVersion(), s.gateway.Dimensions())
	}

	logger.Section("Vector Search")
	logger.Debug("Dimensions: %d, top-k: %d", len(vector), opts.TopK)

	fingerprint := domain.FingerprintVector(vector, s.gateway.ModelVersion(), opts)
	if cached, ok := s.cacheGet(ctx, fingerprint, opts); ok {
		logger.Debug("Cache hit for fingerprint %.12s", fingerprint)
		return cached, nil
	}

	return s.run(ctx, vector, opts, fingerprint)
}

// run executes the store search and post-processing shared by both
// query shapes.
func (s *Searcher) run(ctx context.Context, vector []float32, opts domain.SearchOptions, fingerprint string) ([]domain.QueryResult, error) {
	fetchK := opts.TopK
	if opts.Predicate != nil {
		// The store cannot evaluate the predicate, so overfetch and
		// re-truncate after filtering. Saturate rather than overflow
		// for very large limits.
		if fetchK > math.MaxInt/overfetchFactor {
			fetchK = math.MaxInt
		} else {
			fetchK *= overfetchFactor
		}
	}

	hits, err := s.vectors.Search(ctx, vector, s.gateway.ModelVersion(), fetchK, driven.SearchFilter{
		DocumentIDs: opts.DocumentIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Store returned %d hits", len(hits))

	results := make([]domain.QueryResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, domain.QueryResult{
			DocumentID: hit.DocumentID,
			Score:      hit.Score,
		})
	}
	domain.SortResults(results)

	if opts.Predicate != nil {
		filtered := results[:0]
		for _, r := range results {
			if opts.Predicate(r) {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	// Fewer than TopK results after filtering is expected, not an error.
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	for idx := range results {
		results[idx].Rank = idx + 1
	}

	s.cachePut(ctx, fingerprint, results, opts)
	logger.Info("Returning %d results", len(results))

	return results, nil
}

// cacheGet checks the query cache, honouring bypass and the predicate
// restriction (a predicate cannot be part of the fingerprint, so those
// queries are never cached).
func (s *Searcher) cacheGet(ctx context.Context, fingerprint string, opts domain.SearchOptions) ([]domain.QueryResult, bool) {
	if !s.cacheable(opts) {
		return nil, false
	}
	results, err := s.cache.Get(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Cache get failed: %v", err)
		}
		return nil, false
	}
	return results, true
}

func (s *Searcher) cachePut(ctx context.Context, fingerprint string, results []domain.QueryResult, opts domain.SearchOptions) {
	if !s.cacheable(opts) {
		return
	}
	if err := s.cache.Put(ctx, fingerprint, results, s.cacheTTL); err != nil {
		logger.Warn("Cache put failed: %v", err)
	}
}

func (s *Searcher) cacheable(opts domain.SearchOptions) bool {
	return s.cache != nil && !opts.BypassCache && opts.Predicate == nil
}

func validateTopK(topK int) error {
	if topK <= 0 {
		return fmt.Errorf("%w: top-k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	return nil
}
