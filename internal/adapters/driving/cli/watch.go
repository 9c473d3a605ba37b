package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/historia-labs/historia-indexing/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch a directory and keep the index in sync",
	Long: `Performs an initial ingest of the directory, then watches for file
changes and keeps the corpus and index in sync. The background worker
runs alongside the watcher so marked documents are embedded as they
arrive. Stops on interrupt.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if newIngestor == nil {
		return errors.New("ingestor not configured")
	}
	if newWorker == nil {
		return errors.New("worker not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ingestor := newIngestor(args[0])
	defer ingestor.Close()

	count, err := ingestor.Ingest(ctx)
	if err != nil {
		return fmt.Errorf("initial ingest failed: %w", err)
	}
	cmd.Printf("Ingested %d documents, watching %s for changes...\n", count, args[0])

	worker := newWorker()
	go func() {
		if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("worker stopped: %v", err)
		}
	}()
	defer worker.Stop()

	if err := ingestor.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch failed: %w", err)
	}

	cmd.Println("Watch stopped.")
	return nil
}
