package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Document represents a source document in the corpus.
// The engine only relies on ID, Content and ContentHash; the remaining
// fields exist so the CLI can act as a standalone corpus owner.
type Document struct {
	// ID is the stable, externally assigned identifier.
	ID string

	// Title is the human-readable title.
	Title string

	// Content is the full text content.
	Content string

	// ContentHash identifies the exact content that was stored.
	// It changes whenever Content changes and is the sole freshness
	// signal for the indexing pipeline.
	ContentHash string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was first stored.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// HashContent returns the canonical content hash for a document body.
// Hash equality, not timestamps, decides embedding freshness, so retries
// and reordered updates cannot produce a falsely fresh record.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
