// Command sleepsync synchronises Fitbit sleep logs into WakaTime.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/sleepsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/sleepsync/internal/app"
	"github.com/custodia-labs/sleepsync/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx, version, bootstrap)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func bootstrap(ctx context.Context, cfg *config.Config) (*cli.Services, error) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &cli.Services{
		Sync:        a.Sync,
		Credentials: a.Credentials,
		Jobs:        a.Jobs,
		History:     a.Scheduler,
		Daemon:      a,
		Close:       a.Close,
	}, nil
}
