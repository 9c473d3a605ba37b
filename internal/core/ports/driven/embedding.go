// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingProvider generates vector embeddings from text.
//
// This is the raw model capability. Input normalisation, rate limiting
// and error classification live in the gateway service that wraps it.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//   - A deterministic stub for offline runs and tests
//
// Adapters classify their failures by wrapping domain.ErrModel (the input
// is permanently unembeddable) or domain.ErrUnavailable (transient).
type EmbeddingProvider interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// Every vector produced under one ModelVersion has this dimension.
	Dimensions() int

	// ModelVersion returns the version tag identifying the embedding
	// function. Embeddings are deterministic within a version.
	ModelVersion() string

	// Ping validates the provider is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
