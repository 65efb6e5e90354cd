package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var followedCmd = &cobra.Command{
	Use:   "followed",
	Short: "List accounts tracked in the ledger and today's follow count",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := loadBase(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		now := time.Now()
		today := a.window.Today(now)
		done, err := a.ledger.GetFollowedToday(ctx, today)
		if err != nil {
			return err
		}
		list, err := a.ledger.ListFollowed(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d/%d follows used\n\n", today, done, a.cfg.Engagement.DailyFollowCap)
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ACCOUNT\tHANDLE\tFOLLOWED\tAGE\tSTATE")
		for _, f := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				f.AccountID, f.Handle,
				f.FollowedAt.In(a.window.Location).Format(time.RFC3339),
				now.Sub(f.FollowedAt).Truncate(time.Minute),
				f.State())
		}
		return w.Flush()
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete daily follow counters older than today",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := loadBase(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		today := a.window.Today(time.Now())
		n, err := a.ledger.PurgeStaleCounters(ctx, today)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d counter rows before %s\n", n, today)
		return nil
	},
}
