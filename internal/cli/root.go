package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/launchkit-dev/launchkit/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the launchkit command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "launchkit",
		Short: "Launchkit - marketing site and auth starter",
		Long: `Launchkit CLI - inspect route classification and manage sessions.

Configuration is read from the same environment variables and .env files
as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "launchkit version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewRoutesCmd())
	rootCmd.AddCommand(commands.NewSessionsCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
