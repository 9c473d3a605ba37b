// Package memory provides in-memory implementations of the storage
// ports. They serve tests and the zero-dependency standalone mode; all
// operations are safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore
// using exact brute-force similarity search.
type VectorStore struct {
	mu      sync.RWMutex
	metric  domain.Metric
	records map[string]domain.EmbeddingRecord
	// dims pins the dimensionality per model version; mixing dimensions
	// under one version is an invariant violation.
	dims map[string]int
}

// NewVectorStore creates an in-memory vector store for the given metric.
func NewVectorStore(metric domain.Metric) *VectorStore {
	return &VectorStore{
		metric:  metric,
		records: make(map[string]domain.EmbeddingRecord),
		dims:    make(map[string]int),
	}
}

// Upsert atomically replaces any existing record for the document.
func (s *VectorStore) Upsert(_ context.Context, record domain.EmbeddingRecord) error {
	if record.DocumentID == "" {
		return fmt.Errorf("%w: record has no document ID", domain.ErrInvalidArgument)
	}
	if len(record.Vector) == 0 {
		return fmt.Errorf("%w: record has no vector", domain.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if want, ok := s.dims[record.ModelVersion]; ok && want != len(record.Vector) {
		return fmt.Errorf("%w: model %s stores %d-dimensional vectors, got %d",
			domain.ErrDimensionMismatch, record.ModelVersion, want, len(record.Vector))
	}
	s.dims[record.ModelVersion] = len(record.Vector)

	vec := make([]float32, len(record.Vector))
	copy(vec, record.Vector)
	record.Vector = vec
	s.records[record.DocumentID] = record
	return nil
}

// Get returns the current record for a document.
func (s *VectorStore) Get(_ context.Context, documentID string) (*domain.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

// Delete removes the record. Absent records are a no-op.
func (s *VectorStore) Delete(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, documentID)
	return nil
}

// Search returns at most topK hits ordered by descending score, ties
// broken by document ID ascending.
func (s *VectorStore) Search(_ context.Context, vector []float32, modelVersion string, topK int, filter driven.SearchFilter) ([]driven.VectorHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top-k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if want, ok := s.dims[modelVersion]; ok && want != len(vector) {
		return nil, fmt.Errorf("%w: model %s stores %d-dimensional vectors, query has %d",
			domain.ErrDimensionMismatch, modelVersion, want, len(vector))
	}

	var allowed map[string]bool
	if len(filter.DocumentIDs) > 0 {
		allowed = make(map[string]bool, len(filter.DocumentIDs))
		for _, id := range filter.DocumentIDs {
			allowed[id] = true
		}
	}

	hits := make([]driven.VectorHit, 0, len(s.records))
	for id, record := range s.records {
		if record.ModelVersion != modelVersion {
			continue
		}
		if allowed != nil && !allowed[id] {
			continue
		}
		hits = append(hits, driven.VectorHit{
			DocumentID: id,
			Score:      s.score(vector, record.Vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// VerifyMetric checks the store was built for the given metric.
func (s *VectorStore) VerifyMetric(_ context.Context, metric domain.Metric) error {
	if metric != s.metric {
		return fmt.Errorf("%w: store is built for %s, configured %s",
			domain.ErrMetricMismatch, s.metric, metric)
	}
	return nil
}

// Ping validates the store is reachable.
func (s *VectorStore) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}

func (s *VectorStore) score(query, stored []float32) float64 {
	switch s.metric {
	case domain.MetricInnerProduct:
		return dot(query, stored)
	default:
		return cosine(query, stored)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func cosine(a, b []float32) float64 {
	var numerator, normA, normB float64
	for i := range a {
		numerator += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return numerator / (math.Sqrt(normA) * math.Sqrt(normB))
}
