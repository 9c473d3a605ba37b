// Package cli implements the historia command line interface. Services
// are injected by the composition root through the Set* functions;
// commands guard against missing services so each one can be tested in
// isolation.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/historia-labs/historia-indexing/internal/core/ports/driven"
	"github.com/historia-labs/historia-indexing/internal/core/ports/driving"
	"github.com/historia-labs/historia-indexing/internal/logger"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// Ingestor feeds documents from an external source into the corpus.
type Ingestor interface {
	Ingest(ctx context.Context) (int, error)
	Watch(ctx context.Context) error
	Close() error
}

// Worker runs the background embedding loop.
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

var (
	indexerService driving.Indexer
	searchService  driving.SearchService
	documentStore  driven.DocumentStore

	// newIngestor builds an ingestor rooted at a directory.
	newIngestor func(root string) Ingestor
	// newWorker builds the background processing loop.
	newWorker func() Worker
	// pings maps component names to health checks for the status command.
	pings map[string]func(context.Context) error
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "historia",
	Short: "Vector indexing and similarity retrieval for document corpora",
	Long: `Historia maintains a vector index over a document corpus: documents
are embedded through a configured model provider, stored in a vector
store, and kept fresh as content changes. Queries are answered by
nearest-neighbour retrieval with deterministic ranking.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// SetVersion sets the version string printed by the version command.
func SetVersion(v string) {
	version = v
}

// SetServices injects the core services. Pass nil for anything the
// current invocation does not need.
func SetServices(indexer driving.Indexer, search driving.SearchService, docs driven.DocumentStore) {
	indexerService = indexer
	searchService = search
	documentStore = docs
}

// SetIngestorFactory injects the constructor used by ingest and watch.
func SetIngestorFactory(f func(root string) Ingestor) {
	newIngestor = f
}

// SetWorkerFactory injects the constructor used by the worker command.
func SetWorkerFactory(f func() Worker) {
	newWorker = f
}

// SetPings injects named health checks for the status command.
func SetPings(p map[string]func(context.Context) error) {
	pings = p
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
