package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatsCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print statistics for the configured corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			snap, closeSource, err := buildSnapshot(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeSource()

			stats := snap.Index.Stats()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "source\t%s\n", snap.Source)
			fmt.Fprintf(tw, "documents\t%d\n", stats.Documents)
			fmt.Fprintf(tw, "terms\t%d\n", stats.Terms)
			fmt.Fprintf(tw, "tokens\t%d\n", stats.Tokens)
			return tw.Flush()
		},
	}
}
