package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scheduled tasks and recent runs",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 5, "number of recent runs to show per task")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if taskHistory == nil {
		return errors.New("scheduler history not configured")
	}

	tasks, err := taskHistory.Tasks(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}
	if len(tasks) == 0 {
		cmd.Println("No scheduled tasks yet. Run 'sleepsync serve' to start the scheduler.")
		return nil
	}

	for i := range tasks {
		task := &tasks[i]
		state := "enabled"
		if !task.Enabled {
			state = "disabled"
		}
		cmd.Printf("%s (%s) [%s]\n", task.Name, task.ID, state)
		cmd.Printf("  Schedule:     %s\n", task.Schedule)
		cmd.Printf("  Next run:     %s\n", formatTime(task.NextRun))
		cmd.Printf("  Last run:     %s\n", formatTime(task.LastRun))
		cmd.Printf("  Last success: %s\n", formatTime(task.LastSuccess))
		if task.LastError != "" {
			cmd.Printf("  Last error:   %s\n", task.LastError)
		}

		results, err := taskHistory.History(cmd.Context(), task.ID, statusLimit)
		if err != nil {
			return fmt.Errorf("loading history for %s: %w", task.ID, err)
		}
		for _, r := range results {
			cmd.Printf("  %s\n", formatResult(r))
		}
	}
	return nil
}

func formatResult(r domain.TaskResult) string {
	status := "ok"
	if !r.Success {
		status = "failed"
	}
	line := fmt.Sprintf("%s  %-6s  %d processed, %d failed  %s",
		r.StartedAt.Format(time.RFC3339), status, r.ItemsProcessed, r.ItemsFailed,
		r.Duration().Round(time.Millisecond))
	if r.Error != "" {
		line += "  " + r.Error
	}
	return line
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
