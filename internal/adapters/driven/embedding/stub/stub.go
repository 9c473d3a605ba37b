// Package stub provides a deterministic, offline embedding provider.
// It backs tests and the standalone mode where no model service runs.
package stub

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// DefaultDimensions is the stub vector size when none is configured.
const DefaultDimensions = 64

// Provider derives unit-length vectors from a content hash, so
// identical normalised text always embeds identically and similarity
// search behaves sensibly without a real model. Individual texts can be
// pinned to fixed vectors for scenario tests.
type Provider struct {
	dimensions int
	version    string

	mu       sync.RWMutex
	fixtures map[string][]float32
}

// New creates a stub provider. Zero dimensions selects the default.
func New(dimensions int, version string) *Provider {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	if version == "" {
		version = "stub-v1"
	}
	return &Provider{
		dimensions: dimensions,
		version:    version,
		fixtures:   make(map[string][]float32),
	}
}

// Pin fixes the vector returned for a given text (after normalisation).
// The vector length must match the provider dimensions.
func (p *Provider) Pin(text string, vector []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pinned := make([]float32, len(vector))
	copy(pinned, vector)
	p.fixtures[domain.NormalizeText(text)] = pinned
}

// Embed derives a deterministic vector for the text.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	normalized := domain.NormalizeText(text)

	p.mu.RLock()
	pinned, ok := p.fixtures[normalized]
	p.mu.RUnlock()
	if ok {
		vector := make([]float32, len(pinned))
		copy(vector, pinned)
		return vector, nil
	}

	return p.derive(normalized), nil
}

// EmbedBatch embeds each text in turn.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// Dimensions returns the stub vector size.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// ModelVersion returns the configured version tag.
func (p *Provider) ModelVersion() string {
	return p.version
}

// Ping always succeeds; the stub has no remote dependency.
func (p *Provider) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (p *Provider) Close() error {
	return nil
}

// derive expands the content hash into a unit-length vector. The hash
// is re-fed into itself for dimensions beyond one digest's worth.
func (p *Provider) derive(normalized string) []float32 {
	vector := make([]float32, p.dimensions)
	digest := sha256.Sum256([]byte(normalized))
	buf := digest[:]

	for i := 0; i < p.dimensions; i++ {
		if len(buf) < 4 {
			next := sha256.Sum256(buf)
			buf = next[:]
		}
		bits := binary.BigEndian.Uint32(buf[:4])
		buf = buf[4:]
		// Map to [-1, 1).
		vector[i] = float32(int32(bits)) / float32(math.MaxInt32)
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector
}
