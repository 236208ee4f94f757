package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAlertsCommand(rootOpts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:           "alerts",
		Short:         "List raised dead-letter queue threshold alerts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlerts(rootOpts, limit, cmd)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max alerts to return")

	return cmd
}

func runAlerts(opts *rootOptions, limit int, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd)

	alerts, err := opts.client.Alerts(cmd.Context(), limit)
	if err != nil {
		return reportClientError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.success(alerts)
	}

	if len(alerts) == 0 {
		fmt.Fprintln(formatter.Writer, "no alerts raised")

		return nil
	}

	for _, a := range alerts {
		fmt.Fprintf(formatter.Writer, "%s\tpending=%d\tthreshold=%d\traised=%s\n",
			a.ID, a.PendingCount, a.Threshold, a.RaisedAt)
	}

	return nil
}
