package domain

import (
	"fmt"
	"time"
)

// EmbeddingRecord is the persisted vector for a document.
// At most one live record exists per document.
type EmbeddingRecord struct {
	// DocumentID links to the source document (unique).
	DocumentID string

	// Vector is the fixed-dimension embedding.
	Vector []float32

	// ModelVersion tags the embedding function that produced the vector.
	// All vectors sharing a ModelVersion have identical dimensionality.
	ModelVersion string

	// ContentHashAtIndex is the document's content hash observed when the
	// embedding was computed. The record is fresh iff it equals the
	// document's current ContentHash.
	ContentHashAtIndex string

	// CreatedAt is when this record was written.
	CreatedAt time.Time
}

// Fresh reports whether the record still reflects the given content hash.
func (r EmbeddingRecord) Fresh(contentHash string) bool {
	return r.ContentHashAtIndex == contentHash
}

// Metric identifies the similarity metric a deployment is built for.
// It is fixed per deployment and must match the vector index structure;
// a mismatch is a configuration error detected at startup.
type Metric string

const (
	// MetricCosine scores by cosine similarity in [-1, 1].
	MetricCosine Metric = "cosine"

	// MetricInnerProduct scores by inner product.
	MetricInnerProduct Metric = "inner_product"
)

// ParseMetric validates a metric name from configuration.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, MetricInnerProduct:
		return Metric(s), nil
	case "":
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("%w: unknown similarity metric %q", ErrInvalidArgument, s)
	}
}

// String returns the metric name.
func (m Metric) String() string {
	return string(m)
}
