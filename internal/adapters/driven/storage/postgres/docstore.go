package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
)

// Ensure documentStore implements the interface.
var _ driven.DocumentStore = (*documentStore)(nil)

// documentStore implements driven.DocumentStore on the shared pool.
// Deleting a document cascades to its embedding record at the schema
// level, so a corpus delete can never leave an orphaned vector.
type documentStore struct {
	store *Store
}

// Save stores or updates a document, computing ContentHash when unset.
func (d *documentStore) Save(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document has no ID", domain.ErrInvalidArgument)
	}
	if doc.ContentHash == "" {
		doc.ContentHash = domain.HashContent(doc.Content)
	}

	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	now := time.Now()
	err = d.store.pool.QueryRow(ctx, `
		INSERT INTO documents (id, title, content, content_hash, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			content_hash = EXCLUDED.content_hash,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`,
		doc.ID, doc.Title, doc.Content, doc.ContentHash, metadataJSON, now,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// Get retrieves a document by ID.
func (d *documentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON []byte

	err := d.store.pool.QueryRow(ctx, `
		SELECT id, title, content, content_hash, metadata, created_at, updated_at
		FROM documents WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.ContentHash,
		&metadataJSON, &doc.CreatedAt, &doc.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &doc, nil
}

// GetContent returns the current content and hash for a document.
func (d *documentStore) GetContent(ctx context.Context, documentID string) (string, string, error) {
	var content, hash string
	err := d.store.pool.QueryRow(ctx,
		`SELECT content, content_hash FROM documents WHERE id = $1`,
		documentID).Scan(&content, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", domain.ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("get content: %w", err)
	}
	return content, hash, nil
}

// Delete removes a document. Absent documents are a no-op.
func (d *documentStore) Delete(ctx context.Context, id string) error {
	if _, err := d.store.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// List returns all document IDs, sorted for determinism.
func (d *documentStore) List(ctx context.Context) ([]string, error) {
	rows, err := d.store.pool.Query(ctx, `SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return ids, nil
}
