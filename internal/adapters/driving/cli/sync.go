package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync [user-id]",
	Short: "Run one sync cycle now",
	Long: `Syncs yesterday's sleep for every eligible user.
If a user ID is provided, only that user is synchronised.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}

	target := ""
	if len(args) > 0 {
		target = args[0]
		cmd.Printf("Synchronising user: %s...\n", target)
	} else {
		cmd.Println("Synchronising all users...")
	}

	outcome, err := syncOrchestrator.RunCycle(cmd.Context(), target)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	printSyncOutcome(cmd, outcome)
	return nil
}

func printSyncOutcome(cmd *cobra.Command, o domain.SyncOutcome) {
	cmd.Printf("Run %s: %d processed, %d skipped, %d failed (%s)\n",
		o.RunID, o.UsersProcessed, o.UsersSkipped, o.UsersFailed,
		o.Finished.Sub(o.Started).Round(time.Millisecond))
}
