package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/ctfclient/internal/client/session"
)

func (c *Cli) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Change account settings",
	}
	cmd.AddCommand(c.settingsPasswordCmd(), c.settingsUsernameCmd())
	return requireAuth(cmd)
}

func (c *Cli) settingsPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var changes session.UserChanges
			var err error
			if changes.OldPassword, err = c.io.ReadPassword("Current password: "); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			if changes.NewPassword, err = c.io.ReadPassword("New password: "); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			if changes.ConfirmPassword, err = c.io.ReadPassword("Confirm new password: "); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			if err := c.store.ModifyUser(cmd.Context(), changes); err != nil {
				return err
			}
			c.io.Println("✓ Password changed!")
			return nil
		},
	}
}

func (c *Cli) settingsUsernameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "username <name>",
		Short: "Change your username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.store.ModifyUser(cmd.Context(), session.UserChanges{Username: args[0]}); err != nil {
				return err
			}
			c.io.Printf("✓ Username changed to %s\n", args[0])
			return c.refresh(cmd.Context())
		},
	}
}
