package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iudanet/ctfclient/internal/client/plugin"
	"github.com/iudanet/ctfclient/internal/client/session"
	"github.com/iudanet/ctfclient/internal/models"
)

// ErrUnknownChallenge is returned for an ID missing from the cached catalog
var ErrUnknownChallenge = errors.New("challenge not found, run 'ctfclient sync' to refresh the catalog")

func (c *Cli) syncCmd() *cobra.Command {
	return requireAuth(&cobra.Command{
		Use:   "sync",
		Short: "Reload user, team and challenges from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := c.store.Reconcile(cmd.Context())
			if session.IsDegraded(err) {
				c.io.Println("⚠️  Server unreachable, keeping cached data.")
				return nil
			}
			if err != nil {
				return err
			}
			snap := c.store.Snapshot()
			c.io.Println("✓ Synchronization completed successfully!")
			c.io.Printf("Challenges: %d in %d categories\n", countChallenges(snap.Challenges), len(snap.Challenges))
			return nil
		},
	})
}

func (c *Cli) challengesCmd() *cobra.Command {
	return requireAuth(&cobra.Command{
		Use:     "challenges",
		Aliases: []string{"ls"},
		Short:   "List the challenge catalog",
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			catalog := c.store.Snapshot().Challenges
			if len(catalog) == 0 {
				c.io.Println("No challenges available.")
				return nil
			}

			for _, cat := range catalog {
				c.io.Printf("== %s ==\n", cat.Name)
				for _, chal := range cat.Challenges {
					mark := " "
					switch {
					case chal.Solved:
						mark = "x"
					case !chal.Unlocked:
						mark = "-"
					}
					c.io.Printf("  [%s] #%d %s (%d)\n", mark, chal.ID, chal.Name, chal.Score)
				}
				c.io.Println()
			}
			return nil
		},
	})
}

func (c *Cli) challengeCmd() *cobra.Command {
	var edit bool
	cmd := requireAuth(&cobra.Command{
		Use:   "challenge <id>",
		Short: "Show a challenge through its type plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			chal, cat, err := c.findChallenge(args[0])
			if err != nil {
				return err
			}
			kind := plugin.KindChallenge
			if edit {
				kind = plugin.KindEditor
			}
			return c.plugins.Render(c.io, kind, chal, cat)
		},
	})
	cmd.Flags().BoolVar(&edit, "edit", false, "show the challenge editor view")
	return cmd
}

func (c *Cli) attemptCmd() *cobra.Command {
	return requireAuth(&cobra.Command{
		Use:   "attempt <id> <flag>",
		Short: "Submit a flag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			chal, _, err := c.findChallenge(args[0])
			if err != nil {
				return err
			}
			flag := args[1]

			if !plugin.ValidFlag(chal, flag, c.cfg.FlagPrefix) {
				_, hint := plugin.FlagFormat(chal, c.cfg.FlagPrefix)
				return fmt.Errorf("flag must look like %s", hint)
			}

			correct, err := c.store.AttemptFlag(ctx, chal.ID, flag)
			if err != nil {
				return err
			}
			if !correct {
				c.io.Println("✗ Incorrect flag.")
				return nil
			}

			c.store.MarkSolved(chal.ID)
			c.io.Printf("✓ Correct flag! +%d points\n", chal.Score)
			return c.refresh(ctx)
		},
	})
}

func (c *Cli) findChallenge(arg string) (*models.Challenge, *models.Category, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid challenge id %q", arg)
	}
	chal, cat := c.store.Snapshot().Challenges.FindChallenge(id)
	if chal == nil {
		return nil, nil, ErrUnknownChallenge
	}
	return chal, cat, nil
}

func countChallenges(catalog models.Catalog) int {
	n := 0
	for _, cat := range catalog {
		n += len(cat.Challenges)
	}
	return n
}
