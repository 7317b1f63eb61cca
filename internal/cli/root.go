package cli

import (
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X expenses/internal/cli.Version=...".
var Version = "dev"

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rt := &runtime{}
	var envFile string

	rootCmd := &cobra.Command{
		Use:     "expenses",
		Short:   "Expense tracker API and admin tools",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.init(envFile, cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")

	rootCmd.AddCommand(
		newServeCommand(rt),
		newMigrateCommand(rt),
		newSeedCommand(rt),
		newUserCommand(rt),
		newEventsCommand(rt),
	)

	return rootCmd
}
