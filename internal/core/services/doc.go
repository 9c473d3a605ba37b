// Package services implements the core use cases: the embedder gateway,
// the indexing pipeline, the query engine and the background scheduler.
// Services depend only on domain types and driven ports.
package services
