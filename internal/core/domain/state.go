package domain

import "time"

// IndexState is the pipeline state of a document.
//
// Transitions: StatePending -> StateEmbedding -> StateStored, with
// StateFailed reachable from StateEmbedding. A content change from any
// state returns the document to StatePending.
type IndexState string

const (
	// StatePending means the document awaits (re-)embedding.
	StatePending IndexState = "pending"

	// StateEmbedding means a worker holds the claim and is computing
	// the embedding.
	StateEmbedding IndexState = "embedding"

	// StateStored means the vector store holds a fresh embedding.
	StateStored IndexState = "stored"

	// StateFailed means embedding failed permanently or exhausted its
	// retry budget. The document is excluded from search until retried.
	StateFailed IndexState = "failed"
)

// IndexEntry tracks the pipeline state for a single document.
// Claims are conditional state transitions in the shared store, not
// in-process locks, because workers run in independent processes.
type IndexEntry struct {
	// DocumentID identifies the document.
	DocumentID string

	// State is the current pipeline state.
	State IndexState

	// Attempts counts embedding attempts since the last content change.
	Attempts int

	// ClaimToken identifies the worker holding the claim, when
	// State is StateEmbedding.
	ClaimToken string

	// ClaimExpiresAt is when the claim becomes reclaimable. A stuck
	// worker cannot hold the claim past this instant.
	ClaimExpiresAt time.Time

	// NextRetryAt is the earliest time a pending entry may be claimed.
	// Exponential backoff after transient failures pushes this forward.
	NextRetryAt time.Time

	// LastError holds the most recent failure message, if any.
	LastError string

	// UpdatedAt is when the entry last changed.
	UpdatedAt time.Time
}

// ClaimExpired reports whether an in-flight claim has lapsed at now.
func (e IndexEntry) ClaimExpired(now time.Time) bool {
	return e.State == StateEmbedding && now.After(e.ClaimExpiresAt)
}

// Due reports whether the entry is ready for a worker to claim at now.
func (e IndexEntry) Due(now time.Time) bool {
	if e.State == StatePending {
		return !now.Before(e.NextRetryAt)
	}
	return e.ClaimExpired(now)
}
