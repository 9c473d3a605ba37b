package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/historia-labs/historia-indexing/internal/core/domain"
)

var (
	searchTopK    int
	searchJSON    bool
	searchNoCache bool
	searchDocs    []string
	searchVector  string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the vector index",
	Long: `Runs a nearest-neighbour similarity query against the vector index.
The query text is embedded under the active model version; pass --vector
to supply a pre-computed embedding instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchNoCache, "no-cache", false, "bypass the query cache")
	searchCmd.Flags().StringSliceVar(&searchDocs, "documents", nil, "restrict results to these document IDs")
	searchCmd.Flags().StringVar(&searchVector, "vector", "", "comma-separated embedding to query with instead of text")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	ctx := context.Background()
	opts := domain.SearchOptions{
		TopK:        searchTopK,
		DocumentIDs: searchDocs,
		BypassCache: searchNoCache,
	}

	var (
		results []domain.QueryResult
		err     error
	)
	switch {
	case searchVector != "":
		vector, perr := parseVector(searchVector)
		if perr != nil {
			return perr
		}
		results, err = searchService.SearchVector(ctx, vector, opts)
	case len(args) == 1:
		results, err = searchService.Search(ctx, args[0], opts)
	default:
		return errors.New("provide a query or --vector")
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

// parseVector parses a comma-separated list of floats.
func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	vector := make([]float32, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", part, err)
		}
		vector = append(vector, float32(f))
	}
	return vector, nil
}

func outputSearchJSON(cmd *cobra.Command, results []domain.QueryResult) error {
	if results == nil {
		results = []domain.QueryResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.QueryResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		cmd.Printf("  [%d] %s (%.4f)\n", results[i].Rank, results[i].DocumentID, results[i].Score)
	}
	cmd.Println()
	cmd.Printf("Total: %d results\n", len(results))
	return nil
}
