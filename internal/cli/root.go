package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crmdash/crmdash/internal/cli/commands"
	"github.com/crmdash/crmdash/internal/logger"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the crmdash command tree
func NewRootCmd() *cobra.Command {
	opts := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "crmdash",
		Short: "crmdash - CRM dashboard in your terminal",
		Long: `crmdash CLI - Sign in to a CRM GraphQL API and browse your dashboard.

The session token is kept in the OS keychain (or a file, see --store) and is
sent as a bearer token on every request. When the API rejects it the session
is cleared and you are asked to log in again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.InitWithWriter(opts.LogLevel, "console", cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.Endpoint, "endpoint", "", "Endpoint alias or URL from crmdash.json")
	rootCmd.PersistentFlags().StringVar(&opts.Store, "store", "keyring", "Credential store: keyring, file or memory")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crmdash version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewSelectEndpointCmd())
	rootCmd.AddCommand(commands.NewLoginCmd(opts))
	rootCmd.AddCommand(commands.NewLogoutCmd(opts))
	rootCmd.AddCommand(commands.NewCheckCmd(opts))
	rootCmd.AddCommand(commands.NewWhoamiCmd(opts))
	rootCmd.AddCommand(commands.NewDashCmd(opts))

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
