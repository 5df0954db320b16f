package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, queue worker and health endpoint",
	Long: `Runs sleepsync as a daemon: recurring sync cycles on the configured
cron schedule, the job queue worker when the queue is enabled, and the
/healthz and /metrics HTTP endpoints. Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if daemon == nil {
		return errors.New("daemon not configured")
	}

	return daemon.Serve(cmd.Context())
}
