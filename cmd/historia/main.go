// Command historia is the entry point for the vector indexing and
// retrieval CLI. It loads configuration, wires the configured adapters
// into the core services, and hands control to the command tree.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/historia-labs/historia-indexing/internal/adapters/driven/cache/memory"
	"github.com/historia-labs/historia-indexing/internal/adapters/driven/cache/redis"
	"github.com/historia-labs/historia-indexing/internal/adapters/driven/embedding/ollama"
	"github.com/historia-labs/historia-indexing/internal/adapters/driven/embedding/openai"
	"github.com/historia-labs/historia-indexing/internal/adapters/driven/embedding/stub"
	"github.com/historia-labs/historia-indexing/internal/adapters/driven/ingest/filesystem"
	storagememory "github.com/historia-labs/historia-indexing/internal/adapters/driven/storage/memory"
	"github.com/historia-labs/historia-indexing/internal/adapters/driven/storage/postgres"
	"github.com/historia-labs/historia-indexing/internal/adapters/driving/cli"
	"github.com/historia-labs/historia-indexing/internal/config"
	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
	"github.com/historia-labs/historia-indexing/internal/core/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("HISTORIA_CONFIG"))
	if err != nil {
		return err
	}

	ctx := context.Background()
	metric, err := domain.ParseMetric(cfg.Storage.Metric)
	if err != nil {
		return err
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	docs, states, vectors, closeStorage, err := buildStorage(ctx, cfg, metric)
	if err != nil {
		return err
	}
	defer closeStorage()

	cache, err := buildCache(cfg)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	gateway := services.NewGateway(provider, services.GatewayConfig{
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		BurstSize:         cfg.Embedding.Burst,
		Timeout:           time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
	})
	indexer := services.NewIndexer(docs, states, vectors, gateway, cache, services.IndexerConfig{
		ClaimTTL:    time.Duration(cfg.Indexing.ClaimTTLSeconds) * time.Second,
		MaxAttempts: cfg.Indexing.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Indexing.BaseBackoffSeconds) * time.Second,
		MaxBackoff:  time.Duration(cfg.Indexing.MaxBackoffSeconds) * time.Second,
	})
	searcher := services.NewSearcher(vectors, gateway, cache, cfg.CacheTTL())

	cli.SetServices(indexer, searcher, docs)
	cli.SetIngestorFactory(func(root string) cli.Ingestor {
		return filesystem.New(root, docs, indexer)
	})
	cli.SetWorkerFactory(func() cli.Worker {
		return services.NewScheduler(services.SchedulerConfig{
			Interval:  time.Duration(cfg.Worker.IntervalSeconds) * time.Second,
			BatchSize: cfg.Worker.BatchSize,
		}, indexer)
	})

	checks := map[string]func(context.Context) error{
		"embedder": gateway.Ping,
		"vectors":  vectors.Ping,
	}
	if cache != nil {
		checks["cache"] = cache.Ping
	}
	cli.SetPings(checks)

	return cli.Execute()
}

// buildProvider constructs the configured embedding provider.
func buildProvider(cfg *config.Config) (driven.EmbeddingProvider, error) {
	timeout := time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second
	switch cfg.Embedding.Provider {
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Timeout:    timeout,
			Dimensions: cfg.Embedding.Dimensions,
		}), nil
	case "openai":
		provider, err := openai.New(openai.Config{
			APIKey:     cfg.Embedding.APIKey,
			Model:      cfg.Embedding.Model,
			Timeout:    timeout,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return provider, nil
	case "stub":
		return stub.New(cfg.Embedding.Dimensions, ""), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

// buildStorage constructs the document, state and vector stores for the
// configured backend.
func buildStorage(ctx context.Context, cfg *config.Config, metric domain.Metric) (
	driven.DocumentStore, driven.IndexStateStore, driven.VectorStore, func(), error,
) {
	switch cfg.Storage.Backend {
	case "postgres":
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:        cfg.Storage.DSN,
			Metric:     metric,
			Dimensions: cfg.Storage.Dimensions,
		})
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return store.DocumentStore(), store.IndexStateStore(), store.VectorStore(),
			func() { store.Close() }, nil
	case "memory":
		return storagememory.NewDocumentStore(),
			storagememory.NewIndexStateStore(),
			storagememory.NewVectorStore(metric),
			func() {}, nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildCache constructs the query cache, or nil when caching is off.
func buildCache(cfg *config.Config) (driven.QueryCache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		cache, err := redis.New(redis.Config{
			URL:    cfg.Cache.URL,
			Prefix: cfg.Cache.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return cache, nil
	case "memory":
		return memory.NewCache(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
