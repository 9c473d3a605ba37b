// Package redis provides a query cache backed by Redis, shared across
// worker processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.QueryCache = (*Cache)(nil)

// DefaultPrefix namespaces Historia keys inside a shared Redis.
const DefaultPrefix = "historia"

// Config holds configuration for the Redis cache.
type Config struct {
	// URL is a redis:// connection URL. When set it takes precedence
	// over Addr, Password, and DB.
	URL string

	// Addr is the Redis host:port.
	Addr string

	// Password authenticates against Redis, if set.
	Password string

	// DB selects the Redis logical database.
	DB int

	// Prefix namespaces all keys (default: historia).
	Prefix string
}

// Cache is a Redis implementation of driven.QueryCache.
//
// Invalidation is coarse and O(1): entry keys embed a generation
// counter, and invalidating bumps the counter so every existing entry
// becomes unreachable at once. Orphaned entries fall out via their TTL.
type Cache struct {
	client *goredis.Client
	prefix string
}

// New creates a Redis query cache.
func New(cfg Config) (*Cache, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}

	opts := &goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.URL != "" {
		parsed, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	return &Cache{
		client: goredis.NewClient(opts),
		prefix: cfg.Prefix,
	}, nil
}

// Get returns the cached results for a fingerprint.
func (c *Cache) Get(ctx context.Context, fingerprint string) ([]domain.QueryResult, error) {
	key, err := c.entryKey(ctx, fingerprint)
	if err != nil {
		return nil, err
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var results []domain.QueryResult
	if err := json.Unmarshal(payload, &results); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return results, nil
}

// Put stores results under a fingerprint with the given TTL.
func (c *Cache) Put(ctx context.Context, fingerprint string, results []domain.QueryResult, ttl time.Duration) error {
	key, err := c.entryKey(ctx, fingerprint)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate bumps the generation counter, orphaning every live entry.
func (c *Cache) Invalidate(ctx context.Context, _ string) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("redis incr: %w", err)
	}
	return nil
}

// Ping validates the cache is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) generationKey() string {
	return c.prefix + ":cache:gen"
}

func (c *Cache) entryKey(ctx context.Context, fingerprint string) (string, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, goredis.Nil) {
		gen = 0
	} else if err != nil {
		return "", fmt.Errorf("redis generation: %w", err)
	}
	return fmt.Sprintf("%s:cache:%d:%s", c.prefix, gen, fingerprint), nil
}
