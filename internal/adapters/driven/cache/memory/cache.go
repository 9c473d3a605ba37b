// Package memory provides an in-memory query cache for tests and the
// zero-dependency standalone mode.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.QueryCache = (*Cache)(nil)

type entry struct {
	results   []domain.QueryResult
	expiresAt time.Time
}

// Cache is an in-memory implementation of driven.QueryCache with TTL
// expiry and coarse invalidation: any write drops the whole cache,
// since any query result can reference any document.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry

	// now is replaceable for tests.
	now func() time.Time
}

// NewCache creates an in-memory query cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// SetClock overrides the cache clock. Test helper.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the cached results for a fingerprint.
func (c *Cache) Get(_ context.Context, fingerprint string) ([]domain.QueryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, fingerprint)
		return nil, domain.ErrNotFound
	}

	results := make([]domain.QueryResult, len(e.results))
	copy(results, e.results)
	return results, nil
}

// Put stores results under a fingerprint with the given TTL.
func (c *Cache) Put(_ context.Context, fingerprint string, results []domain.QueryResult, ttl time.Duration) error {
	stored := make([]domain.QueryResult, len(results))
	copy(stored, results)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = entry{
		results:   stored,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Invalidate drops the whole cache on any document write.
func (c *Cache) Invalidate(_ context.Context, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	return nil
}

// Ping validates the cache is reachable.
func (c *Cache) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (c *Cache) Close() error {
	return nil
}

// Len returns the number of live entries. Test helper.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
