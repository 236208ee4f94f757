package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCommand(rootOpts *rootOptions) *cobra.Command {
	var filter listFilter

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List dead-letter queue entries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, filter, cmd)
		},
	}

	cmd.Flags().StringVar(&filter.Status, "status", "", "filter by status (pending|retrying|resolved|discarded)")
	cmd.Flags().StringVar(&filter.SourceDeviceID, "device", "", "filter by source device ID")
	cmd.Flags().StringVar(&filter.SourceEndpoint, "endpoint", "", "filter by source endpoint")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "max entries to return")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "entries to skip")

	return cmd
}

func runList(opts *rootOptions, filter listFilter, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd)

	entries, err := opts.client.List(cmd.Context(), filter)
	if err != nil {
		return reportClientError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.success(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "no DLQ entries")

		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "%s\t%-10s\t%s\t%s\tretries=%d\t%s\n",
			e.ID, e.Status, e.SourceDeviceID, e.SourceEndpoint, e.RetryCount, e.FailureReason)
	}

	return nil
}
