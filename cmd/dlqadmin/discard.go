package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDiscardCommand(rootOpts *rootOptions) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:           "discard <id>",
		Short:         "Permanently discard a dead-letter queue entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscard(rootOpts, args[0], notes, cmd)
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "reason recorded against the discarded entry")

	return cmd
}

func runDiscard(opts *rootOptions, id, notes string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd)

	if err := opts.client.Discard(cmd.Context(), id, notes); err != nil {
		return reportClientError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.success(map[string]bool{"success": true})
	}

	fmt.Fprintf(formatter.Writer, "discarded %s\n", id)

	return nil
}
