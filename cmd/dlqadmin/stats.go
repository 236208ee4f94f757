package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Show dead-letter queue counts by status",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}
}

func runStats(opts *rootOptions, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd)

	stats, err := opts.client.Stats(cmd.Context())
	if err != nil {
		return reportClientError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.success(stats)
	}

	fmt.Fprintf(formatter.Writer, "pending:            %d\n", stats.Pending)
	fmt.Fprintf(formatter.Writer, "retrying:           %d\n", stats.Retrying)
	fmt.Fprintf(formatter.Writer, "resolved:           %d\n", stats.Resolved)
	fmt.Fprintf(formatter.Writer, "discarded:          %d\n", stats.Discarded)
	fmt.Fprintf(formatter.Writer, "threshold_exceeded: %t\n", stats.ThresholdExceeded)

	return nil
}
