package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest documents from a directory",
	Long: `Walks a directory tree and adds every text file to the corpus,
marking each for embedding. Run the worker to process the backlog.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if newIngestor == nil {
		return errors.New("ingestor not configured")
	}

	ingestor := newIngestor(args[0])
	defer ingestor.Close()

	count, err := ingestor.Ingest(context.Background())
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Ingested %d documents from %s.\n", count, args[0])
	return nil
}
