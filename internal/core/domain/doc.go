// Package domain contains the core entities of the indexing engine:
// documents, embedding records, pipeline state and search results.
// It has no dependencies on adapters or infrastructure.
package domain
