package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRetryCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "retry <id>",
		Short:         "Reingest a dead-letter queue entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetry(rootOpts, args[0], cmd)
		},
	}
}

func runRetry(opts *rootOptions, id string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd)

	result, err := opts.client.Retry(cmd.Context(), id)
	if err != nil {
		return reportClientError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.success(result)
	}

	if !result.Success {
		fmt.Fprintf(formatter.Writer, "retry failed: %s\n", result.Error)

		return newExitError(exitFailure, result.Error)
	}

	fmt.Fprintf(formatter.Writer, "reingested: event=%s sequence=%d chain_hash=%s\n",
		result.EventID, result.SequenceID, result.ChainHash)

	return nil
}
