package driving

import (
	"context"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
)

// Indexer owns the embedding lifecycle for the corpus. Indexing is
// asynchronous relative to document writes: search results may lag the
// true document state by a bounded staleness window. That is the
// documented consistency contract, not a bug.
type Indexer interface {
	// IndexDocument marks a document for (re-)embedding. It is a
	// fire-and-forget acknowledgement: transient embedding failures are
	// absorbed and retried internally, never surfaced to the trigger.
	IndexDocument(ctx context.Context, documentID string) error

	// RemoveDocument deletes the document's embedding and pipeline
	// state and invalidates cached query results. After it returns, no
	// search will surface the document.
	RemoveDocument(ctx context.Context, documentID string) error

	// ProcessPending claims and processes up to limit due documents.
	// Background workers call this in a loop. Returns the number of
	// documents that reached a terminal state this pass.
	ProcessPending(ctx context.Context, limit int) (int, error)

	// Status returns the pipeline entry for a document.
	Status(ctx context.Context, documentID string) (*domain.IndexEntry, error)
}
