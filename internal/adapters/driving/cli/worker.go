package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	workerOnce  bool
	workerBatch int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background embedding worker",
	Long: `Processes due documents through the embedding pipeline. By default
the worker runs until interrupted; pass --once to drain a single batch
and exit.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().BoolVar(&workerOnce, "once", false, "process one batch and exit")
	workerCmd.Flags().IntVar(&workerBatch, "batch", 32, "batch size for --once")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if workerOnce {
		if indexerService == nil {
			return errors.New("indexer not configured")
		}
		processed, err := indexerService.ProcessPending(context.Background(), workerBatch)
		if err != nil {
			return fmt.Errorf("processing failed: %w", err)
		}
		cmd.Printf("Processed %d documents.\n", processed)
		return nil
	}

	if newWorker == nil {
		return errors.New("worker not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := newWorker()
	cmd.Println("Worker started, press Ctrl+C to stop.")

	err := worker.Start(ctx)
	if stopErr := worker.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker failed: %w", err)
	}

	cmd.Println("Worker stopped.")
	return nil
}
