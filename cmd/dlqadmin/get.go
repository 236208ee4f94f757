package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGetCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <id>",
		Short:         "Show one dead-letter queue entry, including its payload",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args[0], cmd)
		},
	}
}

func runGet(opts *rootOptions, id string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd)

	entry, err := opts.client.Get(cmd.Context(), id)
	if err != nil {
		return reportClientError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.success(entry)
	}

	fmt.Fprintf(formatter.Writer, "id:          %s\n", entry.ID)
	fmt.Fprintf(formatter.Writer, "status:      %s\n", entry.Status)
	fmt.Fprintf(formatter.Writer, "device:      %s\n", entry.SourceDeviceID)
	fmt.Fprintf(formatter.Writer, "endpoint:    %s\n", entry.SourceEndpoint)
	fmt.Fprintf(formatter.Writer, "retries:     %d\n", entry.RetryCount)
	fmt.Fprintf(formatter.Writer, "failure:     %s\n", entry.FailureReason)
	fmt.Fprintf(formatter.Writer, "first_seen:  %s\n", entry.FirstFailedAt)
	fmt.Fprintf(formatter.Writer, "last_seen:   %s\n", entry.LastFailedAt)

	if entry.ResolverIdentity != "" {
		fmt.Fprintf(formatter.Writer, "resolver:    %s\n", entry.ResolverIdentity)
	}

	if entry.Notes != "" {
		fmt.Fprintf(formatter.Writer, "notes:       %s\n", entry.Notes)
	}

	fmt.Fprintf(formatter.Writer, "payload:     %s\n", entry.Payload)

	return nil
}
