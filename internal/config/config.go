// Package config loads the Historia configuration from a TOML file,
// applies defaults, and overlays environment variables for the values
// that are usually injected by the deployment (database DSN, Redis
// URL, API keys).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
)

// Config is the full runtime configuration.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Cache     CacheConfig     `toml:"cache"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Indexing  IndexingConfig  `toml:"indexing"`
	Search    SearchConfig    `toml:"search"`
	Worker    WorkerConfig    `toml:"worker"`
}

// StorageConfig selects and parameterises the vector store backend.
type StorageConfig struct {
	// Backend is "postgres" or "memory".
	Backend    string `toml:"backend"`
	DSN        string `toml:"dsn"`
	Metric     string `toml:"metric"`
	Dimensions int    `toml:"dimensions"`
}

// CacheConfig selects the query cache backend.
type CacheConfig struct {
	// Backend is "redis", "memory", or "none".
	Backend    string `toml:"backend"`
	URL        string `toml:"url"`
	KeyPrefix  string `toml:"key_prefix"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// EmbeddingConfig selects and parameterises the embedding provider.
type EmbeddingConfig struct {
	// Provider is "ollama", "openai", or "stub".
	Provider          string  `toml:"provider"`
	Model             string  `toml:"model"`
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Dimensions        int     `toml:"dimensions"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// IndexingConfig controls the embedding pipeline's claim and retry
// behaviour.
type IndexingConfig struct {
	ClaimTTLSeconds    int `toml:"claim_ttl_seconds"`
	MaxAttempts        int `toml:"max_attempts"`
	BaseBackoffSeconds int `toml:"base_backoff_seconds"`
	MaxBackoffSeconds  int `toml:"max_backoff_seconds"`
}

// SearchConfig controls query defaults.
type SearchConfig struct {
	DefaultTopK int `toml:"default_top_k"`
}

// WorkerConfig controls the background processing loop.
type WorkerConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
	BatchSize       int `toml:"batch_size"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend:    "memory",
			Metric:     string(domain.MetricCosine),
			Dimensions: 768,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			KeyPrefix:  "historia",
			TTLSeconds: 300,
		},
		Embedding: EmbeddingConfig{
			Provider:          "ollama",
			Model:             "nomic-embed-text",
			BaseURL:           "http://localhost:11434",
			Dimensions:        768,
			RequestsPerSecond: 10,
			Burst:             20,
			TimeoutSeconds:    30,
		},
		Indexing: IndexingConfig{
			ClaimTTLSeconds:    120,
			MaxAttempts:        5,
			BaseBackoffSeconds: 1,
			MaxBackoffSeconds:  300,
		},
		Search: SearchConfig{
			DefaultTopK: 10,
		},
		Worker: WorkerConfig{
			IntervalSeconds: 15,
			BatchSize:       32,
		},
	}
}

// DefaultPath returns ~/.historia/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".historia", "config.toml"), nil
}

// Load reads the config file at path, or the default path when path is
// empty. A missing file is not an error: defaults plus environment
// overrides apply.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Write persists the configuration to path with restricted
// permissions, creating the parent directory when needed.
func (c *Config) Write(path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// applyEnv overlays deployment-injected values. Environment wins over
// the file so secrets never need to live on disk.
func (c *Config) applyEnv() {
	if v := os.Getenv("HISTORIA_DATABASE_URL"); v != "" {
		c.Storage.DSN = v
	} else if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("HISTORIA_REDIS_URL"); v != "" {
		c.Cache.URL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.Cache.URL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("HISTORIA_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embedding.Dimensions = n
		}
	}
}

// Validate rejects configurations the adapters cannot construct from.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Cache.Backend {
	case "redis", "memory", "none":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Embedding.Provider {
	case "ollama", "openai", "stub":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if _, err := domain.ParseMetric(c.Storage.Metric); err != nil {
		return err
	}
	if c.Storage.Dimensions <= 0 {
		return fmt.Errorf("storage dimensions must be positive, got %d", c.Storage.Dimensions)
	}
	if c.Search.DefaultTopK <= 0 {
		return fmt.Errorf("default top_k must be positive, got %d", c.Search.DefaultTopK)
	}
	return nil
}

// CacheTTL returns the configured cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
