package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "brandseed",
		Short: "Generate synthetic brands and bulk load them into a search endpoint",
		Long: `brandseed synthesizes brand records with sequential ids and submits them
in fixed-size batches to a bulk-index endpoint, reporting every failed
batch so it can be re-submitted on its own.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringP("config", "c", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", "info", "log level")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")

	root.AddCommand(newLoadCmd(), newServeCmd())
	return root
}
