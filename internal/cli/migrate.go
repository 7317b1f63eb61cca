package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"expenses/internal/storage"
)

func newMigrateCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Cobra runs only the nearest persistent pre-run.
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			return rt.requireSQLite("migrate")
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.RunMigrations(rt.cfg.SQLiteDBPath); err != nil {
				return err
			}
			return printVersion(cmd, rt.cfg.SQLiteDBPath)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Revert the last migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			if err := storage.RollbackMigrations(rt.cfg.SQLiteDBPath, steps); err != nil {
				return err
			}
			return printVersion(cmd, rt.cfg.SQLiteDBPath)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion(cmd, rt.cfg.SQLiteDBPath)
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, dbPath string) error {
	version, dirty, ok, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch {
	case !ok:
		fmt.Fprintln(out, "schema version: none")
	case dirty:
		fmt.Fprintf(out, "schema version: %d (dirty)\n", version)
	default:
		fmt.Fprintf(out, "schema version: %d\n", version)
	}
	return nil
}
