package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driving"
	"github.com/historia-labs/historia-indexing/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.Indexer = (*Indexer)(nil)

// Default indexer configuration values.
const (
	DefaultClaimTTL      = 2 * time.Minute
	DefaultMaxAttempts   = 5
	DefaultBaseBackoff   = time.Second
	DefaultMaxBackoff    = 5 * time.Minute
	DefaultMaxEmbedRunes = 8192
)

// IndexerConfig holds configuration for the indexing pipeline.
type IndexerConfig struct {
	// ClaimTTL is how long a worker may hold a claim before it becomes
	// reclaimable by another worker.
	ClaimTTL time.Duration

	// MaxAttempts bounds transient-failure retries before a document is
	// marked failed.
	MaxAttempts int

	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration

	// MaxEmbedRunes bounds the text sent to the embedding model. Longer
	// content is embedded from its leading snippet; the content hash
	// still covers the full document, so staleness tracking is
	// unaffected.
	MaxEmbedRunes int

	// Inline makes IndexDocument process the document immediately after
	// marking it pending, instead of leaving it to a background worker.
	Inline bool
}

func (c *IndexerConfig) applyDefaults() {
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = DefaultClaimTTL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxEmbedRunes <= 0 {
		c.MaxEmbedRunes = DefaultMaxEmbedRunes
	}
}

// Indexer reconciles the vector store with the source corpus. It drives
// the per-document state machine pending -> embedding -> stored, with
// failed reachable from embedding, and enforces at most one in-flight
// embedding per document via claims in the shared state store.
type Indexer struct {
	docs    driven.DocumentReader
	states  driven.IndexStateStore
	vectors driven.VectorStore
	gateway *Gateway
	cache   driven.QueryCache // optional
	cfg     IndexerConfig

	// now is replaceable for tests.
	now func() time.Time
}

// NewIndexer creates the indexing pipeline. The cache is optional; when
// nil, invalidation is skipped.
func NewIndexer(
	docs driven.DocumentReader,
	states driven.IndexStateStore,
	vectors driven.VectorStore,
	gateway *Gateway,
	cache driven.QueryCache,
	cfg IndexerConfig,
) *Indexer {
	cfg.applyDefaults()
	return &Indexer{
		docs:    docs,
		states:  states,
		vectors: vectors,
		gateway: gateway,
		cache:   cache,
		cfg:     cfg,
		now:     time.Now,
	}
}

// IndexDocument marks a document for (re-)embedding. A trigger that
// lands while another worker holds a live claim coalesces into that
// worker's cycle instead of resetting it.
//
// The returned error only reflects the enqueue step: embedding failures
// are absorbed by the pipeline and retried with backoff, never surfaced
// to the trigger.
func (i *Indexer) IndexDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document ID is empty", domain.ErrInvalidArgument)
	}

	if err := i.states.MarkPending(ctx, documentID); err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	logger.Debug("Document %s marked pending", documentID)

	if i.cfg.Inline {
		if err := i.processOne(ctx, documentID); err != nil {
			// Infrastructure failure; the entry stays pending and a
			// worker picks it up later.
			logger.Warn("Inline processing of %s deferred: %v", documentID, err)
		}
	}

	return nil
}

// RemoveDocument deletes the embedding, the pipeline entry and any
// cached results referencing the document.
func (i *Indexer) RemoveDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document ID is empty", domain.ErrInvalidArgument)
	}

	if err := i.vectors.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	if err := i.states.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}
	i.invalidate(ctx, documentID)

	logger.Info("Document %s removed from index", documentID)
	return nil
}

// ProcessPending claims and processes up to limit due documents:
// pending entries past their backoff and entries whose claim expired.
func (i *Indexer) ProcessPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrInvalidArgument, limit)
	}

	entries, err := i.states.ListDue(ctx, i.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list due: %w", err)
	}

	processed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := i.processOne(ctx, entry.DocumentID); err != nil {
			logger.Warn("Processing %s failed: %v", entry.DocumentID, err)
			continue
		}
		processed++
	}

	return processed, nil
}

// Status returns the pipeline entry for a document.
func (i *Indexer) Status(ctx context.Context, documentID string) (*domain.IndexEntry, error) {
	return i.states.Get(ctx, documentID)
}

// processOne runs one claim-embed-store cycle for a document.
//
// The claim is a conditional transition in the shared store, so a second
// trigger while one is in flight coalesces instead of duplicating work.
// The returned error covers infrastructure failures only; embedding
// outcomes are recorded on the entry itself.
func (i *Indexer) processOne(ctx context.Context, documentID string) error {
	token := uuid.NewString()

	entry, err := i.states.Claim(ctx, documentID, token, i.now().Add(i.cfg.ClaimTTL))
	if errors.Is(err, domain.ErrClaimHeld) {
		logger.Debug("Claim for %s held elsewhere, coalescing", documentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim %s: %w", documentID, err)
	}

	content, hash, err := i.docs.GetContent(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		// Deleted while queued; a deletion cancels the claim.
		logger.Debug("Document %s gone, clearing index state", documentID)
		return i.RemoveDocument(ctx, documentID)
	}
	if err != nil {
		i.retryOrFail(ctx, entry, token, fmt.Errorf("read content: %w", err))
		return nil
	}

	// Re-embedding unchanged content is idempotent: if the stored record
	// already matches this hash under the active model, skip the call.
	if existing, err := i.vectors.Get(ctx, documentID); err == nil &&
		existing.ModelVersion == i.gateway.ModelVersion() && existing.Fresh(hash) {
		logger.Debug("Document %s unchanged (hash %.12s), skipping embed", documentID, hash)
		return i.complete(ctx, documentID, token, hash)
	}

	if snippets := domain.SplitSnippets(content, i.cfg.MaxEmbedRunes); len(snippets) > 1 {
		logger.Debug("Document %s truncated to %d runes for embedding", documentID, i.cfg.MaxEmbedRunes)
		content = snippets[0]
	}

	vector, err := i.gateway.Embed(ctx, content)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrModel),
			errors.Is(err, domain.ErrInvalidInput),
			errors.Is(err, domain.ErrDimensionMismatch):
			// Permanent: the input is fundamentally unembeddable.
			logger.Warn("Document %s failed permanently: %v", documentID, err)
			i.failPermanently(ctx, documentID, token, err)
		default:
			i.retryOrFail(ctx, entry, token, err)
		}
		return nil
	}

	record := domain.EmbeddingRecord{
		DocumentID:         documentID,
		Vector:             vector,
		ModelVersion:       i.gateway.ModelVersion(),
		ContentHashAtIndex: hash,
		CreatedAt:          i.now(),
	}
	if err := i.vectors.Upsert(ctx, record); err != nil {
		i.retryOrFail(ctx, entry, token, fmt.Errorf("upsert: %w", err))
		return nil
	}

	return i.complete(ctx, documentID, token, hash)
}

// complete finishes a successful cycle: marks the entry stored,
// invalidates the cache and re-marks pending if the content moved again
// while we were embedding, so the record is never silently stale.
func (i *Indexer) complete(ctx context.Context, documentID, token, indexedHash string) error {
	if err := i.states.Complete(ctx, documentID, token); err != nil {
		if errors.Is(err, domain.ErrClaimHeld) {
			// Claim expired and another worker took over; its cycle
			// owns the terminal state now.
			logger.Debug("Claim for %s lapsed before completion", documentID)
			return nil
		}
		return fmt.Errorf("complete: %w", err)
	}

	i.invalidate(ctx, documentID)
	logger.Info("Document %s stored (hash %.12s)", documentID, indexedHash)

	if _, currentHash, err := i.docs.GetContent(ctx, documentID); err == nil && currentHash != indexedHash {
		logger.Debug("Document %s changed during embedding, re-marking pending", documentID)
		if err := i.states.MarkPending(ctx, documentID); err != nil {
			return fmt.Errorf("re-mark pending: %w", err)
		}
	}

	return nil
}

// retryOrFail schedules a transient retry with exponential backoff, or
// marks the document failed once the retry budget is exhausted.
func (i *Indexer) retryOrFail(ctx context.Context, entry *domain.IndexEntry, token string, cause error) {
	attempts := entry.Attempts + 1
	if attempts >= i.cfg.MaxAttempts {
		logger.Warn("Document %s exhausted %d attempts: %v", entry.DocumentID, attempts, cause)
		i.failPermanently(ctx, entry.DocumentID, token, cause)
		return
	}

	delay := i.backoff(attempts)
	logger.Debug("Document %s retry %d/%d in %s: %v",
		entry.DocumentID, attempts, i.cfg.MaxAttempts, delay, cause)
	if err := i.states.Retry(ctx, entry.DocumentID, token, cause.Error(), i.now().Add(delay)); err != nil {
		logger.Warn("Schedule retry for %s: %v", entry.DocumentID, err)
	}
}

// backoff returns the delay before the given attempt number.
func (i *Indexer) backoff(attempt int) time.Duration {
	delay := i.cfg.BaseBackoff
	for n := 1; n < attempt; n++ {
		delay *= 2
		if delay >= i.cfg.MaxBackoff {
			return i.cfg.MaxBackoff
		}
	}
	if delay > i.cfg.MaxBackoff {
		delay = i.cfg.MaxBackoff
	}
	return delay
}

// failPermanently marks the entry failed and withdraws any vector kept
// from an earlier successful cycle. A failed document must not keep
// serving results computed from content that no longer matches it.
func (i *Indexer) failPermanently(ctx context.Context, documentID, token string, cause error) {
	if err := i.states.MarkFailed(ctx, documentID, token, cause.Error()); err != nil {
		if errors.Is(err, domain.ErrClaimHeld) {
			// Claim expired and another worker owns the entry; leave
			// its record alone.
			logger.Debug("Claim for %s lapsed before failure was recorded", documentID)
			return
		}
		logger.Warn("Mark failed for %s: %v", documentID, err)
		return
	}
	if err := i.vectors.Delete(ctx, documentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Warn("Withdraw vector for failed %s: %v", documentID, err)
	}
	i.invalidate(ctx, documentID)
}

func (i *Indexer) invalidate(ctx context.Context, documentID string) {
	if i.cache == nil {
		return
	}
	if err := i.cache.Invalidate(ctx, documentID); err != nil {
		// TTL expiry still bounds staleness if invalidation misses.
		logger.Warn("Cache invalidation for %s failed: %v", documentID, err)
	}
}
