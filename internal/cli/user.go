package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"expenses/internal/core"
)

func newUserCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCommand(rt))
	return cmd
}

func newUserAddCommand(rt *runtime) *cobra.Command {
	var name, email, status string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireSQLite("user add"); err != nil {
				return err
			}
			store, err := rt.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			u, err := store.CreateUser(cmd.Context(), core.NewUser{
				Name:   strings.TrimSpace(name),
				Email:  strings.TrimSpace(email),
				Status: core.UserStatus(strings.ToLower(status)),
			})
			if errors.Is(err, core.ErrEmailTaken) {
				return fmt.Errorf("email %s is already registered", email)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d created: %s <%s> (%s)\n", u.ID, u.Name, u.Email, u.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "unique email address (required)")
	cmd.Flags().StringVar(&status, "status", string(core.StatusActive), "active or inactive")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}
