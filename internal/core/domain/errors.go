package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed caller input, such as text that
	// is empty after normalisation. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidArgument indicates a bad call parameter, such as a
	// non-positive top-k. Rejected immediately.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnavailable indicates a transient dependency failure.
	// Callers retry with bounded exponential backoff.
	ErrUnavailable = errors.New("temporarily unavailable")

	// ErrModel indicates the embedding model permanently rejected the
	// input (for example, it exceeds the model's token limit). The
	// document is marked failed and excluded from search until retried.
	ErrModel = errors.New("model rejected input")

	// ErrDimensionMismatch indicates a vector whose dimensionality does
	// not match the active model version. Fatal to the request.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrMetricMismatch indicates the configured similarity metric does
	// not match the metric the persisted index was built for.
	ErrMetricMismatch = errors.New("similarity metric mismatch")

	// ErrClaimHeld indicates another worker holds the indexing claim for
	// the document. The trigger is coalesced, not duplicated.
	ErrClaimHeld = errors.New("indexing claim held")
)
