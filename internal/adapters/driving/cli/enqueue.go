package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue sync work for the daemon's worker",
	Long: `Publishes a job for the queue worker of a running "sleepsync serve".
Jobs cross processes only on the NATS backend, so the queue must be enabled
with queue.backend = "nats".`,
}

var enqueueSyncCmd = &cobra.Command{
	Use:   "sync [user-id]",
	Short: "Queue a sync cycle for all users or one user",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEnqueueSync,
}

var enqueueImportCmd = &cobra.Command{
	Use:   "import <user-id> [months]",
	Short: "Queue a history import for one user",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runEnqueueImport,
}

func init() {
	enqueueCmd.AddCommand(enqueueSyncCmd)
	enqueueCmd.AddCommand(enqueueImportCmd)
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueueSync(cmd *cobra.Command, args []string) error {
	job := domain.Job{Kind: domain.JobSyncAllUsers}
	if len(args) > 0 {
		job = domain.Job{Kind: domain.JobSyncUser, UserID: args[0]}
	}
	return submit(cmd, job)
}

func runEnqueueImport(cmd *cobra.Command, args []string) error {
	months := importMonths()
	if len(args) > 1 {
		months = parseMonths(args[1], months)
	}
	return submit(cmd, domain.Job{Kind: domain.JobImportHistory, UserID: args[0], Months: months})
}

func submit(cmd *cobra.Command, job domain.Job) error {
	if jobSubmitter == nil {
		return errors.New("job service not configured")
	}
	id, err := jobSubmitter.Submit(cmd.Context(), job)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	cmd.Printf("Enqueued %s job %s\n", job.Kind, id)
	return nil
}
