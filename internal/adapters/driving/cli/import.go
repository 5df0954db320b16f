package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sleepsync/internal/logger"
)

var importCmd = &cobra.Command{
	Use:   "import <user-id> [months]",
	Short: "Import a user's sleep history",
	Long: `Syncs every day from the given number of months ago up to today for
one user. Months defaults to the configured import window (3 unless
configured otherwise); an invalid value falls back to the default.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if len(args) == 0 || args[0] == "" {
		return errors.New("user id is required: sleepsync import <user-id> [months]")
	}
	if syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}

	userID := args[0]
	months := importMonths()
	if len(args) > 1 {
		months = parseMonths(args[1], months)
	}

	cmd.Printf("Importing %d months of history for user %s...\n", months, userID)

	outcome, err := syncOrchestrator.ImportHistory(cmd.Context(), userID, months)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	cmd.Printf("Run %s: imported %d of %d days (%s to %s)\n",
		outcome.RunID, outcome.DaysProcessed, outcome.DaysRequested, outcome.From, outcome.To)
	return nil
}

// parseMonths returns the positive integer in s, or def.
func parseMonths(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		logger.Warn("invalid months %q, using %d", s, def)
		return def
	}
	return n
}
