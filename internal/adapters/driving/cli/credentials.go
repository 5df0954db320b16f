package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

var credentialsCmd = &cobra.Command{
	Use:     "credentials",
	Aliases: []string{"creds"},
	Short:   "Manage stored provider credentials",
}

var credentialsSinkCmd = &cobra.Command{
	Use:   "sink <user-id>",
	Short: "Store a WakaTime API key for a user",
	Long: `Stores a WakaTime API key, and optionally a custom API URL for
self-hosted WakaTime-compatible servers, for one user.`,
	Args: cobra.ExactArgs(1),
	RunE: runCredentialsSink,
}

var credentialsShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a user's stored credentials with secrets redacted",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsShow,
}

// Flags for credentials sink.
var (
	sinkAPIKey string
	sinkAPIURL string
)

func init() {
	credentialsSinkCmd.Flags().StringVar(&sinkAPIKey, "api-key", "", "WakaTime API key (required)")
	credentialsSinkCmd.Flags().StringVar(&sinkAPIURL, "api-url", "", "WakaTime API base URL override")
	_ = credentialsSinkCmd.MarkFlagRequired("api-key")

	credentialsCmd.AddCommand(credentialsSinkCmd)
	credentialsCmd.AddCommand(credentialsShowCmd)
	rootCmd.AddCommand(credentialsCmd)
}

func runCredentialsSink(cmd *cobra.Command, args []string) error {
	if credentialsService == nil {
		return errors.New("credentials service not configured")
	}
	if err := credentialsService.ConnectSink(cmd.Context(), args[0], sinkAPIKey, sinkAPIURL); err != nil {
		return fmt.Errorf("saving sink credentials: %w", err)
	}
	cmd.Printf("Sink credentials saved for user %s.\n", args[0])
	return nil
}

func runCredentialsShow(cmd *cobra.Command, args []string) error {
	if credentialsService == nil {
		return errors.New("credentials service not configured")
	}
	cred, err := credentialsService.Get(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no credentials stored for user %s", args[0])
		}
		return err
	}

	cmd.Printf("User:            %s\n", cred.UserID)
	cmd.Printf("Source token:    %s\n", redact(cred.SourceAccessToken))
	cmd.Printf("Source refresh:  %s\n", redact(cred.SourceRefreshToken))
	cmd.Printf("Source expires:  %s\n", formatExpiry(cred.SourceTokenExpiry))
	cmd.Printf("Sink token:      %s\n", redact(cred.SinkAccessToken))
	cmd.Printf("Sink refresh:    %s\n", redact(cred.SinkRefreshToken))
	cmd.Printf("Sink expires:    %s\n", formatExpiry(cred.SinkTokenExpiry))
	cmd.Printf("Sink API URL:    %s\n", cred.SinkBaseURL())
	return nil
}

// redact keeps the first four characters of long secrets.
func redact(s string) string {
	switch {
	case s == "":
		return "(none)"
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****"
	}
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
