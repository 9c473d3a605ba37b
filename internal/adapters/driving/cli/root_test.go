package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cachememory "github.com/historia-labs/historia-indexing/internal/adapters/driven/cache/memory"
	"github.com/historia-labs/historia-indexing/internal/adapters/driven/embedding/stub"
	storagememory "github.com/historia-labs/historia-indexing/internal/adapters/driven/storage/memory"
	"github.com/historia-labs/historia-indexing/internal/core/domain"
	"github.com/historia-labs/historia-indexing/internal/core/services"
)

// setupTestServices wires the CLI to an in-memory stack with a
// deterministic embedding provider. Indexing runs inline so documents
// are searchable as soon as they are added.
func setupTestServices(t *testing.T) *stub.Provider {
	t.Helper()

	docs := storagememory.NewDocumentStore()
	states := storagememory.NewIndexStateStore()
	vectors := storagememory.NewVectorStore(domain.MetricCosine)
	cache := cachememory.NewCache()
	provider := stub.New(3, "")

	gateway := services.NewGateway(provider, services.GatewayConfig{})
	indexer := services.NewIndexer(docs, states, vectors, gateway, cache, services.IndexerConfig{
		Inline: true,
	})
	searcher := services.NewSearcher(vectors, gateway, cache, time.Minute)

	SetServices(indexer, searcher, docs)
	SetPings(map[string]func(context.Context) error{
		"embedder": gateway.Ping,
		"vectors":  vectors.Ping,
		"cache":    cache.Ping,
	})
	t.Cleanup(func() {
		SetServices(nil, nil, nil)
		SetPings(nil)
	})
	return provider
}

// executeCommand runs the root command with args and captures output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(bytes.NewReader(nil))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores flag-bound package variables between executions.
// Cobra parses into shared vars, so a prior test's flags would leak.
func resetFlags() {
	searchTopK = 10
	searchJSON = false
	searchNoCache = false
	searchDocs = nil
	searchVector = ""
	addTitle = ""
	addFile = ""
	workerOnce = false
	workerBatch = 32
}

// addDocument stores and inline-indexes a document through the CLI.
func addDocument(t *testing.T, id, content string) {
	t.Helper()

	resetFlags()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(bytes.NewBufferString(content))
	rootCmd.SetArgs([]string{"document", "add", id})
	require.NoError(t, rootCmd.Execute())
}
