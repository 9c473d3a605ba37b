package driven

import (
	"context"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
)

// DocumentReader is the corpus surface the pipeline consumes. The
// surrounding application owns documents; the engine only reads their
// identity, content and hash.
type DocumentReader interface {
	// GetContent returns the current content and content hash for a
	// document, or domain.ErrNotFound if it no longer exists.
	GetContent(ctx context.Context, documentID string) (content, contentHash string, err error)
}

// DocumentStore persists corpus documents. The CLI uses it to act as a
// standalone corpus owner; embedded deployments may supply only a
// DocumentReader.
type DocumentStore interface {
	DocumentReader

	// Save stores or updates a document. ContentHash is computed from
	// Content if unset.
	Save(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// Delete removes a document. Absent documents are a no-op.
	Delete(ctx context.Context, id string) error

	// List returns all document IDs in the corpus.
	List(ctx context.Context) ([]string, error)
}
