package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/ctfclient/internal/client/countdown"
)

func (c *Cli) countdownCmd() *cobra.Command {
	var watch bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "countdown",
		Short: "Show competition timers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			current, err := c.countdown.Refresh(ctx)
			if err != nil {
				return err
			}
			c.printCountdown(current, time.Now())
			if !watch {
				return nil
			}

			err = c.countdown.Watch(ctx, interval, func(ctx context.Context, keys []string) {
				for _, key := range keys {
					c.io.Printf("⏰ %s has passed\n", key)
				}
				// открытие или закрытие соревнования меняет каталог
				if c.store.Authenticated() {
					if err := c.refresh(ctx); err != nil {
						c.logger.WarnContext(ctx, "failed to reload after countdown", "error", err)
					}
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and reload the catalog when a timer passes")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "how often timers are rechecked with --watch")
	return cmd
}

func (c *Cli) printCountdown(current *countdown.Countdown, now time.Time) {
	keys := current.Keys()
	if len(keys) == 0 {
		c.io.Println("No timers.")
		return
	}
	for _, key := range keys {
		at := current.Dates[key]
		if current.Passed[key] {
			c.io.Printf("%-24s passed (%s)\n", key, at.Local().Format(time.DateTime))
			continue
		}
		remaining := current.Remaining(key, now).Truncate(time.Second)
		c.io.Printf("%-24s in %s (%s)\n", key, remaining, at.Local().Format(time.DateTime))
	}
}
