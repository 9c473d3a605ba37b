package domain

import "sort"

// QueryResult is a single scored search hit.
type QueryResult struct {
	// DocumentID is the matched document.
	DocumentID string `json:"document_id"`

	// Score is the similarity score, higher is more similar.
	// Cosine similarity is normalised to [-1, 1].
	Score float64 `json:"score"`

	// Rank is the 1-based position in the result list. Equal scores are
	// ordered by DocumentID ascending so ranking is deterministic.
	Rank int `json:"rank"`
}

// SearchOptions configures a similarity query.
type SearchOptions struct {
	// TopK is the maximum number of results. Must be positive.
	TopK int

	// DocumentIDs restricts results to the given documents.
	// Applied natively by the vector store.
	DocumentIDs []string

	// Predicate is a caller-supplied post-filter applied after the store
	// search. Results are re-truncated to TopK after filtering, so fewer
	// than TopK results may come back. A non-nil predicate bypasses the
	// query cache because a function cannot be fingerprinted.
	Predicate func(QueryResult) bool

	// BypassCache skips the query cache for this call.
	BypassCache bool
}

// SortResults orders hits by descending score, breaking ties by
// DocumentID ascending, and reassigns 1-based ranks.
func SortResults(results []QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	for i := range results {
		results[i].Rank = i + 1
	}
}
