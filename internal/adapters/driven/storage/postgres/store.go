// Package postgres provides the production storage adapter: corpus
// documents, embedding records and pipeline state in Postgres, with
// pgvector powering the nearest-neighbour search.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/historia-labs/historia-indexing/internal/adapters/driven/storage/postgres/migrations"
	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
	"github.com/historia-labs/historia-indexing/internal/logger"
)

// Config holds configuration for the Postgres store.
type Config struct {
	// DSN is the Postgres connection string.
	DSN string

	// Metric is the similarity metric the vector index is built for.
	Metric domain.Metric

	// Dimensions is the embedding dimension of the active model.
	Dimensions int
}

// Store is a unified Postgres-backed storage that provides access to
// the vector, state and document store interfaces through wrapper types.
type Store struct {
	pool   *pgxpool.Pool
	metric domain.Metric
}

// NewStore connects, runs migrations and ensures the vector index
// matches the configured metric and dimension. A metric or dimension
// that contradicts what the index was built for fails here, at startup,
// never at query time.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres DSN is empty", domain.ErrInvalidArgument)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidArgument, cfg.Dimensions)
	}
	metric, err := domain.ParseMetric(cfg.Metric.String())
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	s := &Store{pool: pool, metric: metric}

	if err := s.migrate(ctx, migrations.FS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := s.ensureIndexConfig(ctx, metric, cfg.Dimensions); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.ensureVectorIndex(ctx, metric, cfg.Dimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure vector index: %w", err)
	}

	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping validates the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// VectorStore returns a VectorStore interface backed by this store.
func (s *Store) VectorStore() driven.VectorStore {
	return &vectorStore{store: s}
}

// IndexStateStore returns an IndexStateStore interface backed by this store.
func (s *Store) IndexStateStore() driven.IndexStateStore {
	return &indexStateStore{store: s}
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// migrate applies embedded SQL migrations in lexical order, tracking
// applied versions in schema_migrations.
func (s *Store) migrate(ctx context.Context, migrationFS fs.FS) error {
	if _, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		sqlBytes, err := fs.ReadFile(migrationFS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}

		logger.Info("Applied migration %s", name)
	}

	return nil
}

// ensureIndexConfig records the metric and dimension on first start and
// verifies them on every later start.
func (s *Store) ensureIndexConfig(ctx context.Context, metric domain.Metric, dimensions int) error {
	var storedMetric string
	var storedDims int
	err := s.pool.QueryRow(ctx,
		`SELECT metric, dimensions FROM index_config WHERE id = 1`).Scan(&storedMetric, &storedDims)

	if errors.Is(err, pgx.ErrNoRows) {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO index_config (id, metric, dimensions) VALUES (1, $1, $2)`,
			metric.String(), dimensions)
		if err != nil {
			return fmt.Errorf("record index config: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index config: %w", err)
	}

	if storedMetric != metric.String() {
		return fmt.Errorf("%w: index was built for %s, configured %s",
			domain.ErrMetricMismatch, storedMetric, metric)
	}
	if storedDims != dimensions {
		return fmt.Errorf("%w: index stores %d-dimensional vectors, configured %d",
			domain.ErrDimensionMismatch, storedDims, dimensions)
	}
	return nil
}

// ensureVectorIndex types the embedding column and builds the HNSW
// structure for the configured metric. CONCURRENTLY keeps reads and
// writes flowing during the build; until the swap completes, queries
// scan the prior structure (or the heap) instead of going dark.
func (s *Store) ensureVectorIndex(ctx context.Context, metric domain.Metric, dimensions int) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`ALTER TABLE embeddings ALTER COLUMN embedding TYPE vector(%d)`, dimensions))
	if err != nil {
		return fmt.Errorf("type embedding column: %w", err)
	}

	opclass := "vector_cosine_ops"
	name := "embeddings_hnsw_cosine_idx"
	if metric == domain.MetricInnerProduct {
		opclass = "vector_ip_ops"
		name = "embeddings_hnsw_ip_idx"
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX CONCURRENTLY IF NOT EXISTS %s ON embeddings USING hnsw (embedding %s)`,
		name, opclass))
	if err != nil {
		return fmt.Errorf("create hnsw index: %w", err)
	}
	return nil
}
