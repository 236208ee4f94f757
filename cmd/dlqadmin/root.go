package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// rootOptions holds flags shared across every dlqadmin subcommand.
type rootOptions struct {
	ServerURL  string
	APIKey     string
	Format     string // "text" | "json"
	Verbose    bool
	ConfigPath string

	client *dlqClient
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "dlqadmin",
		Short: "Operate the ingestion service's dead-letter queue",
		Long: `dlqadmin is an operator CLI over the ingestion API's admin DLQ
surface: it lists, inspects, retries, and discards ingestion events that
failed past their retry budget and were moved to the dead-letter queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}

			fileCfg, err := loadFileConfig(opts.ConfigPath)
			if err != nil {
				return newExitError(exitCommandError, "failed to read config file: "+err.Error())
			}

			if opts.ServerURL == "" {
				opts.ServerURL = fileCfg.ServerURL
			}

			if opts.ServerURL == "" {
				opts.ServerURL = defaultServerURL
			}

			if opts.APIKey == "" {
				opts.APIKey = fileCfg.APIKey
			}

			if !cmd.Flags().Changed("format") && fileCfg.Format != "" {
				opts.Format = fileCfg.Format
			}

			opts.client = newDLQClient(opts.ServerURL, opts.APIKey)

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ServerURL, "server", "", "ingestion API base URL (default http://localhost:8080)")
	cmd.PersistentFlags().StringVar(&opts.APIKey, "api-key", "", "operator API key (X-Api-Key header)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose diagnostic output")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", defaultConfigPath(), "path to dlqadmin config file")

	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newAlertsCommand(opts))
	cmd.AddCommand(newRetryCommand(opts))
	cmd.AddCommand(newDiscardCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}

	return false
}

func formatterFor(opts *rootOptions, cmd *cobra.Command) *outputFormatter {
	return &outputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
