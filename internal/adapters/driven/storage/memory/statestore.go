package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
)

// Ensure IndexStateStore implements the interface.
var _ driven.IndexStateStore = (*IndexStateStore)(nil)

// IndexStateStore is an in-memory implementation of
// driven.IndexStateStore. The mutex makes every transition a single
// compare-and-swap, mirroring the conditional updates the Postgres
// store performs.
type IndexStateStore struct {
	mu      sync.Mutex
	entries map[string]domain.IndexEntry

	// now is replaceable for tests.
	now func() time.Time
}

// NewIndexStateStore creates an in-memory state store.
func NewIndexStateStore() *IndexStateStore {
	return &IndexStateStore{
		entries: make(map[string]domain.IndexEntry),
		now:     time.Now,
	}
}

// SetClock overrides the store's clock. Test helper.
func (s *IndexStateStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get returns the entry for a document.
func (s *IndexStateStore) Get(_ context.Context, documentID string) (*domain.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// MarkPending creates or resets the entry to pending. An unexpired
// embedding claim is left untouched so the in-flight worker keeps
// exclusive ownership; its completion hash recheck covers content that
// moved while it was embedding.
func (s *IndexStateStore) MarkPending(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[documentID]; ok &&
		existing.State == domain.StateEmbedding && !existing.ClaimExpired(s.now()) {
		return nil
	}
	s.entries[documentID] = domain.IndexEntry{
		DocumentID:  documentID,
		State:       domain.StatePending,
		Attempts:    0,
		NextRetryAt: s.now(),
		UpdatedAt:   s.now(),
	}
	return nil
}

// Claim transitions pending -> embedding when the entry is due.
func (s *IndexStateStore) Claim(_ context.Context, documentID, token string, expiresAt time.Time) (*domain.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !entry.Due(s.now()) {
		return nil, domain.ErrClaimHeld
	}

	entry.State = domain.StateEmbedding
	entry.ClaimToken = token
	entry.ClaimExpiresAt = expiresAt
	entry.UpdatedAt = s.now()
	s.entries[documentID] = entry

	result := entry
	return &result, nil
}

// Complete transitions embedding -> stored for the token holder.
func (s *IndexStateStore) Complete(_ context.Context, documentID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	if entry.State != domain.StateEmbedding || entry.ClaimToken != token {
		return domain.ErrClaimHeld
	}

	entry.State = domain.StateStored
	entry.ClaimToken = ""
	entry.ClaimExpiresAt = time.Time{}
	entry.LastError = ""
	entry.UpdatedAt = s.now()
	s.entries[documentID] = entry
	return nil
}

// Retry transitions embedding -> pending with backoff for the token holder.
func (s *IndexStateStore) Retry(_ context.Context, documentID, token, errMsg string, nextRetryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	if entry.State != domain.StateEmbedding || entry.ClaimToken != token {
		return domain.ErrClaimHeld
	}

	entry.State = domain.StatePending
	entry.Attempts++
	entry.ClaimToken = ""
	entry.ClaimExpiresAt = time.Time{}
	entry.NextRetryAt = nextRetryAt
	entry.LastError = errMsg
	entry.UpdatedAt = s.now()
	s.entries[documentID] = entry
	return nil
}

// MarkFailed transitions embedding -> failed for the token holder.
func (s *IndexStateStore) MarkFailed(_ context.Context, documentID, token, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[documentID]
	if !ok {
		return domain.ErrNotFound
	}
	if entry.State != domain.StateEmbedding || entry.ClaimToken != token {
		return domain.ErrClaimHeld
	}

	entry.State = domain.StateFailed
	entry.ClaimToken = ""
	entry.ClaimExpiresAt = time.Time{}
	entry.LastError = errMsg
	entry.UpdatedAt = s.now()
	s.entries[documentID] = entry
	return nil
}

// ListDue returns up to limit entries ready to claim at now, oldest
// update first for fairness.
func (s *IndexStateStore) ListDue(_ context.Context, now time.Time, limit int) ([]domain.IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]domain.IndexEntry, 0)
	for _, entry := range s.entries {
		if entry.Due(now) {
			due = append(due, entry)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].UpdatedAt.Equal(due[j].UpdatedAt) {
			return due[i].UpdatedAt.Before(due[j].UpdatedAt)
		}
		return due[i].DocumentID < due[j].DocumentID
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Delete removes the entry. Absent entries are a no-op.
func (s *IndexStateStore) Delete(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, documentID)
	return nil
}
