package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the sleepsync version",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipBootstrap: ""},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("sleepsync version %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
