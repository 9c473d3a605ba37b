package cli

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check connectivity to configured backends",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if len(pings) == 0 {
		return errors.New("no backends configured")
	}

	names := make([]string, 0, len(pings))
	for name := range pings {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failed := 0
	for _, name := range names {
		if err := pings[name](ctx); err != nil {
			cmd.Printf("  %-12s unreachable: %v\n", name, err)
			failed++
			continue
		}
		cmd.Printf("  %-12s ok\n", name)
	}

	if failed > 0 {
		return errors.New("some backends are unreachable")
	}
	return nil
}
