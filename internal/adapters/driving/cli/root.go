// Package cli implements the sleepsync command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sleepsync/internal/config"
	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driving"
	"github.com/custodia-labs/sleepsync/internal/logger"
)

// version is set at build time.
var version = "dev"

// Global flags.
var (
	configPath string
	verbose    bool
)

// Daemon runs the long-lived services until its context ends.
type Daemon interface {
	Serve(ctx context.Context) error
}

// Services are the core services commands drive.
type Services struct {
	Sync        driving.SyncOrchestrator
	Credentials driving.CredentialsService
	Jobs        driving.JobSubmitter
	History     driving.TaskHistory
	Daemon      Daemon
	// Close releases resources after the command finishes. Optional.
	Close func() error
}

// Bootstrap builds Services from loaded configuration.
type Bootstrap func(ctx context.Context, cfg *config.Config) (*Services, error)

// skipBootstrap marks commands that need neither configuration nor services.
const skipBootstrap = "skip-bootstrap"

// Injected by setup, or directly by tests.
var (
	bootstrap          Bootstrap
	cfg                *config.Config
	syncOrchestrator   driving.SyncOrchestrator
	credentialsService driving.CredentialsService
	jobSubmitter       driving.JobSubmitter
	taskHistory        driving.TaskHistory
	daemon             Daemon
	closeServices      func() error
)

var rootCmd = &cobra.Command{
	Use:   "sleepsync",
	Short: "Synchronise sleep logs into a time-tracking service",
	Long: `sleepsync pulls each user's nightly sleep log from Fitbit, refreshes
OAuth tokens as needed, and records the sleep as an external duration
in WakaTime. Run it as a daemon with "serve" or trigger work by hand.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command with build and the given version.
func Execute(ctx context.Context, v string, build Bootstrap) error {
	if v != "" {
		version = v
	}
	bootstrap = build
	err := rootCmd.ExecuteContext(ctx)
	// PersistentPostRunE does not run after a failed command.
	if cerr := teardown(rootCmd, nil); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	if _, ok := cmd.Annotations[skipBootstrap]; ok {
		return nil
	}
	if bootstrap == nil {
		// Services were injected directly.
		logger.SetVerbose(verbose)
		return nil
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Init(logger.Config{Level: loaded.Log.Level, Format: loaded.Log.Format})
	logger.SetVerbose(verbose)
	cfg = loaded

	svcs, err := bootstrap(cmd.Context(), loaded)
	if err != nil {
		return err
	}
	syncOrchestrator = svcs.Sync
	credentialsService = svcs.Credentials
	jobSubmitter = svcs.Jobs
	taskHistory = svcs.History
	daemon = svcs.Daemon
	closeServices = svcs.Close
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	closeServices = nil
	return err
}

// importMonths is the configured default history window.
func importMonths() int {
	if cfg != nil && cfg.Sync.ImportMonths > 0 {
		return cfg.Sync.ImportMonths
	}
	return domain.DefaultImportMonths
}
