package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sleepsync/internal/adapters/driving/oauth"
	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/logger"
)

// Loopback ports tried when no redirect URI is configured.
const (
	callbackPortStart = 18080
	callbackPortEnd   = 18099
)

// openBrowser is replaced in tests.
var openBrowser = oauth.OpenBrowser

var credentialsConnectCmd = &cobra.Command{
	Use:   "connect <source|sink> [user-id]",
	Short: "Authorise Fitbit or WakaTime for a user in the browser",
	Long: `Runs the OAuth authorisation code flow for one provider and stores the
resulting tokens. A local server receives the redirect, so the redirect URI
must be a loopback http URL registered with the provider.

When no user id is given the provider's account id is used.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCredentialsConnect,
}

// Flags for credentials connect.
var (
	connectNoBrowser   bool
	connectTimeout     time.Duration
	connectRedirectURI string
)

func init() {
	credentialsConnectCmd.Flags().BoolVar(&connectNoBrowser, "no-browser", false, "print the authorisation URL without opening a browser")
	credentialsConnectCmd.Flags().DurationVar(&connectTimeout, "timeout", 5*time.Minute, "how long to wait for the redirect")
	credentialsConnectCmd.Flags().StringVar(&connectRedirectURI, "redirect-uri", "", "loopback redirect URI (default from config)")

	credentialsCmd.AddCommand(credentialsConnectCmd)
}

func parseProvider(s string) (domain.Provider, error) {
	switch strings.ToLower(s) {
	case "source", "fitbit":
		return domain.ProviderSource, nil
	case "sink", "wakatime":
		return domain.ProviderSink, nil
	}
	return "", fmt.Errorf("unknown provider %q: use source or sink", s)
}

// redirectURIFor picks the flag, then the configured URI, then a free
// loopback port.
func redirectURIFor(provider domain.Provider) (string, error) {
	if connectRedirectURI != "" {
		return connectRedirectURI, nil
	}
	if cfg != nil {
		configured := cfg.Source.RedirectURI
		if provider == domain.ProviderSink {
			configured = cfg.Sink.RedirectURI
		}
		if configured != "" {
			return configured, nil
		}
	}
	return oauth.LoopbackRedirectURI(callbackPortStart, callbackPortEnd)
}

func runCredentialsConnect(cmd *cobra.Command, args []string) error {
	if credentialsService == nil {
		return errors.New("credentials service not configured")
	}
	provider, err := parseProvider(args[0])
	if err != nil {
		return err
	}
	var userID string
	if len(args) > 1 {
		userID = args[1]
	}

	redirectURI, err := redirectURIFor(provider)
	if err != nil {
		return fmt.Errorf("choosing redirect uri: %w", err)
	}

	flow, err := credentialsService.BeginConnect(provider, redirectURI)
	if err != nil {
		return fmt.Errorf("starting %s authorisation: %w", provider, err)
	}

	server, err := oauth.NewCallbackServer(flow.RedirectURI, flow.State)
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting callback server: %w", err)
	}
	defer func() { _ = server.Stop() }()

	cmd.Printf("Open this URL to authorise %s:\n\n  %s\n\n", provider, flow.AuthURL)
	if !connectNoBrowser {
		if err := openBrowser(flow.AuthURL); err != nil {
			logger.Warn("could not open browser: %v", err)
		}
	}
	cmd.Println("Waiting for authorisation...")

	ctx, cancel := context.WithTimeout(cmd.Context(), connectTimeout)
	defer cancel()

	code, err := server.Wait(ctx)
	if err != nil {
		return fmt.Errorf("authorisation failed: %w", err)
	}

	stored, err := credentialsService.CompleteConnect(ctx, flow, userID, code)
	if err != nil {
		return fmt.Errorf("authorisation failed: %w", err)
	}
	cmd.Printf("Connected %s for user %s.\n", provider, stored)
	return nil
}
