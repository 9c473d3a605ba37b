package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
)

// Ensure indexStateStore implements the interface.
var _ driven.IndexStateStore = (*indexStateStore)(nil)

// indexStateStore implements driven.IndexStateStore with conditional
// UPDATEs, so every state transition is a single atomic compare-and-swap
// visible identically to workers on any machine.
type indexStateStore struct {
	store *Store
}

// Get returns the entry for a document.
func (s *indexStateStore) Get(ctx context.Context, documentID string) (*domain.IndexEntry, error) {
	entry, err := s.scanOne(s.store.pool.QueryRow(ctx, `
		SELECT document_id, state, attempts, claim_token, claim_expires_at, next_retry_at, last_error, updated_at
		FROM index_entries WHERE document_id = $1`,
		documentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get index entry: %w", err)
	}
	return entry, nil
}

// MarkPending creates or resets the entry to pending. An unexpired
// embedding claim is left untouched: demoting it would wipe the claim
// token and let a second worker start a duplicate computation. The
// in-flight worker's completion hash recheck covers content that moved
// while it was embedding.
func (s *indexStateStore) MarkPending(ctx context.Context, documentID string) error {
	_, err := s.store.pool.Exec(ctx, `
		INSERT INTO index_entries (document_id, state, attempts, next_retry_at, updated_at)
		VALUES ($1, 'pending', 0, now(), now())
		ON CONFLICT (document_id) DO UPDATE SET
			state = 'pending',
			attempts = 0,
			claim_token = '',
			claim_expires_at = NULL,
			next_retry_at = now(),
			last_error = '',
			updated_at = now()
		WHERE index_entries.state <> 'embedding'
		   OR index_entries.claim_expires_at < now()`,
		documentID)
	if err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	return nil
}

// Claim transitions pending -> embedding when the entry is due. The
// WHERE clause is the whole mutual exclusion: only one concurrent
// UPDATE can match, every other worker sees zero rows and coalesces.
func (s *indexStateStore) Claim(ctx context.Context, documentID, token string, expiresAt time.Time) (*domain.IndexEntry, error) {
	entry, err := s.scanOne(s.store.pool.QueryRow(ctx, `
		UPDATE index_entries
		SET state = 'embedding', claim_token = $2, claim_expires_at = $3, updated_at = now()
		WHERE document_id = $1
		  AND ((state = 'pending' AND next_retry_at <= now())
		       OR (state = 'embedding' AND claim_expires_at < now()))
		RETURNING document_id, state, attempts, claim_token, claim_expires_at, next_retry_at, last_error, updated_at`,
		documentID, token, expiresAt))

	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a missing entry from one that is simply not due.
		var exists bool
		if scanErr := s.store.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM index_entries WHERE document_id = $1)`,
			documentID).Scan(&exists); scanErr != nil {
			return nil, fmt.Errorf("check index entry: %w", scanErr)
		}
		if !exists {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrClaimHeld
	}
	if err != nil {
		return nil, fmt.Errorf("claim index entry: %w", err)
	}
	return entry, nil
}

// Complete transitions embedding -> stored for the token holder.
func (s *indexStateStore) Complete(ctx context.Context, documentID, token string) error {
	return s.transition(ctx, documentID, token, `
		UPDATE index_entries
		SET state = 'stored', claim_token = '', claim_expires_at = NULL, last_error = '', updated_at = now()
		WHERE document_id = $1 AND state = 'embedding' AND claim_token = $2`)
}

// Retry transitions embedding -> pending with backoff for the token holder.
func (s *indexStateStore) Retry(ctx context.Context, documentID, token, errMsg string, nextRetryAt time.Time) error {
	tag, err := s.store.pool.Exec(ctx, `
		UPDATE index_entries
		SET state = 'pending', attempts = attempts + 1, claim_token = '', claim_expires_at = NULL,
		    next_retry_at = $3, last_error = $4, updated_at = now()
		WHERE document_id = $1 AND state = 'embedding' AND claim_token = $2`,
		documentID, token, nextRetryAt, errMsg)
	if err != nil {
		return fmt.Errorf("retry index entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.explainMiss(ctx, documentID)
	}
	return nil
}

// MarkFailed transitions embedding -> failed for the token holder.
func (s *indexStateStore) MarkFailed(ctx context.Context, documentID, token, errMsg string) error {
	tag, err := s.store.pool.Exec(ctx, `
		UPDATE index_entries
		SET state = 'failed', claim_token = '', claim_expires_at = NULL, last_error = $3, updated_at = now()
		WHERE document_id = $1 AND state = 'embedding' AND claim_token = $2`,
		documentID, token, errMsg)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.explainMiss(ctx, documentID)
	}
	return nil
}

// ListDue returns up to limit entries ready to claim at now.
func (s *indexStateStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.IndexEntry, error) {
	rows, err := s.store.pool.Query(ctx, `
		SELECT document_id, state, attempts, claim_token, claim_expires_at, next_retry_at, last_error, updated_at
		FROM index_entries
		WHERE (state = 'pending' AND next_retry_at <= $1)
		   OR (state = 'embedding' AND claim_expires_at < $1)
		ORDER BY updated_at ASC, document_id ASC
		LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due: %w", err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry
	for rows.Next() {
		entry, err := s.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scan index entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index entries: %w", err)
	}
	return entries, nil
}

// Delete removes the entry. Absent entries are a no-op.
func (s *indexStateStore) Delete(ctx context.Context, documentID string) error {
	if _, err := s.store.pool.Exec(ctx,
		`DELETE FROM index_entries WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete index entry: %w", err)
	}
	return nil
}

func (s *indexStateStore) transition(ctx context.Context, documentID, token, query string) error {
	tag, err := s.store.pool.Exec(ctx, query, documentID, token)
	if err != nil {
		return fmt.Errorf("transition index entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.explainMiss(ctx, documentID)
	}
	return nil
}

// explainMiss turns a zero-row conditional update into the right
// sentinel: the entry is gone, or someone else holds the claim now.
func (s *indexStateStore) explainMiss(ctx context.Context, documentID string) error {
	var exists bool
	if err := s.store.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM index_entries WHERE document_id = $1)`,
		documentID).Scan(&exists); err != nil {
		return fmt.Errorf("check index entry: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrClaimHeld
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *indexStateStore) scanOne(row rowScanner) (*domain.IndexEntry, error) {
	var entry domain.IndexEntry
	var claimExpires *time.Time

	err := row.Scan(&entry.DocumentID, &entry.State, &entry.Attempts, &entry.ClaimToken,
		&claimExpires, &entry.NextRetryAt, &entry.LastError, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if claimExpires != nil {
		entry.ClaimExpiresAt = *claimExpires
	}
	return &entry, nil
}
