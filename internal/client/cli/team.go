package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/ctfclient/internal/client/session"
)

func (c *Cli) teamCmd() *cobra.Command {
	cmd := requireAuth(&cobra.Command{
		Use:   "team",
		Short: "Show or manage your team",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return c.showTeam()
		},
	})

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show your team",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return c.showTeam()
			},
		},
		c.teamActionCmd("create", "Create a team", (*session.Store).CreateTeam),
		c.teamActionCmd("join", "Join a team", (*session.Store).JoinTeam),
	)
	return cmd
}

// teamActionCmd takes a method expression, the store does not exist until setup runs
func (c *Cli) teamActionCmd(verb, short string, action func(*session.Store, context.Context, string, string) error) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   verb + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = c.io.ReadPassword("Team password: "); err != nil {
					return fmt.Errorf("failed to read team password: %w", err)
				}
			}

			if err := action(c.store, cmd.Context(), args[0], password); err != nil {
				return err
			}
			c.io.Printf("✓ You are now in team %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "team password")
	return cmd
}

func (c *Cli) showTeam() error {
	team := c.store.Snapshot().Team
	if team == nil {
		c.io.Println("You are not in a team.")
		c.io.Println("Run 'ctfclient team create <name>' or 'ctfclient team join <name>'.")
		return nil
	}

	c.io.Printf("=== %s ===\n", team.Name)
	c.io.Printf("Points: %d\n", team.Points)
	c.io.Println("Members:")
	for _, member := range team.Members {
		suffix := ""
		if member.ID == team.Owner {
			suffix = " (owner)"
		}
		c.io.Printf("  - %s%s\n", member.Username, suffix)
	}
	return nil
}
