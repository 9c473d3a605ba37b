package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
	"github.com/historia-labs/historia-indexing/internal/logger"
)

// Default gateway configuration values.
const (
	DefaultRequestsPerSecond = 10.0
	DefaultBurstSize         = 20
	DefaultEmbedTimeout      = 30 * time.Second
)

// GatewayConfig holds configuration for the embedder gateway.
type GatewayConfig struct {
	// RequestsPerSecond is the sustained rate limit towards the provider.
	RequestsPerSecond float64

	// BurstSize is the token bucket burst size.
	BurstSize int

	// Timeout bounds a single embedding call so a stuck provider cannot
	// hold an indexing claim indefinitely.
	Timeout time.Duration
}

// Gateway wraps an EmbeddingProvider behind the stable embed contract:
// it normalises input, rejects empty text, rate-limits and time-bounds
// provider calls, classifies failures into transient vs permanent and
// verifies the returned dimensionality.
//
// Within one model version the gateway is deterministic for identical
// normalised input, which is what makes content-based cache keys valid.
type Gateway struct {
	provider driven.EmbeddingProvider
	limiter  *rate.Limiter
	timeout  time.Duration
}

// NewGateway creates a gateway around a provider.
func NewGateway(provider driven.EmbeddingProvider, cfg GatewayConfig) *Gateway {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultEmbedTimeout
	}

	return &Gateway{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		timeout:  cfg.Timeout,
	}
}

// Embed generates an embedding for the given text.
//
// Text that is empty after normalisation fails with domain.ErrInvalidInput.
// Transient provider failures come back wrapped in domain.ErrUnavailable,
// permanent rejections in domain.ErrModel. The gateway never mutates the
// vector store.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	normalized := domain.NormalizeText(text)
	if normalized == "" {
		return nil, fmt.Errorf("%w: text is empty after normalisation", domain.ErrInvalidInput)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrUnavailable, err)
	}

	embedCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vector, err := g.provider.Embed(embedCtx, normalized)
	if err != nil {
		return nil, g.classify(err)
	}

	if len(vector) != g.provider.Dimensions() {
		return nil, fmt.Errorf("%w: provider returned %d dimensions, expected %d for %s",
			domain.ErrDimensionMismatch, len(vector), g.provider.Dimensions(), g.provider.ModelVersion())
	}

	logger.Debug("Embedded %d chars into %d dimensions (%s)",
		len(normalized), len(vector), g.provider.ModelVersion())

	return vector, nil
}

// classify maps a provider failure into the error taxonomy. Adapters
// wrap their own errors where they can tell; anything unclassified is
// treated as transient so it gets retried rather than dropped.
func (g *Gateway) classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrModel),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: embed timed out after %s", domain.ErrUnavailable, g.timeout)
	default:
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
}

// Dimensions returns the active model's embedding dimension.
func (g *Gateway) Dimensions() int {
	return g.provider.Dimensions()
}

// ModelVersion returns the active model version tag.
func (g *Gateway) ModelVersion() string {
	return g.provider.ModelVersion()
}

// Ping validates the underlying provider is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.provider.Ping(ctx)
}
