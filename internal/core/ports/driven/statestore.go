package driven

import (
	"context"
	"time"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
)

// IndexStateStore tracks per-document pipeline state and implements the
// cross-worker claim. Every transition is a conditional update in the
// shared store so workers on separate machines cannot race: a claim
// succeeds only if the entry is pending (or its previous claim expired),
// and completion only if the caller still holds the claim token.
type IndexStateStore interface {
	// Get returns the entry for a document, or domain.ErrNotFound.
	Get(ctx context.Context, documentID string) (*domain.IndexEntry, error)

	// MarkPending creates or resets the entry to pending with a zero
	// attempt count. Called when a document is created or its content
	// hash changes. An unexpired embedding claim is preserved: the
	// in-flight worker keeps exclusive ownership and its completion
	// hash recheck picks up the new content.
	MarkPending(ctx context.Context, documentID string) error

	// Claim transitions pending -> embedding if and only if the entry is
	// due (pending past its retry time, or holding an expired claim).
	// On success the returned entry carries the given token and expiry.
	// Returns domain.ErrClaimHeld when another worker is in flight and
	// domain.ErrNotFound when no entry exists.
	Claim(ctx context.Context, documentID, token string, expiresAt time.Time) (*domain.IndexEntry, error)

	// Complete transitions embedding -> stored, only for the token
	// holder. Returns domain.ErrClaimHeld if the token no longer holds
	// the claim.
	Complete(ctx context.Context, documentID, token string) error

	// Retry transitions embedding -> pending after a transient failure,
	// incrementing the attempt count and recording the backoff deadline.
	Retry(ctx context.Context, documentID, token, errMsg string, nextRetryAt time.Time) error

	// MarkFailed transitions embedding -> failed. Failed documents are
	// excluded from reindexing until MarkPending is called again.
	MarkFailed(ctx context.Context, documentID, token, errMsg string) error

	// ListDue returns up to limit entries ready to claim at now:
	// pending entries past their retry time and embedding entries whose
	// claim has expired.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.IndexEntry, error)

	// Delete removes the entry. Absent entries are a no-op.
	Delete(ctx context.Context, documentID string) error
}
