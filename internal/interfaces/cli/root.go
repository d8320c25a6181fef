// Package cli implements the lokaskor command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

// NewRootCommand builds the lokaskor root command with its subcommands.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lokaskor",
		Short: "LokaSkor business-site analysis engine",
		Long: `LokaSkor evaluates candidate business locations: point-mode scoring of
individual addresses and region-mode neighborhood scans with heatmap output.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c",
		"configs/config.yaml", "path to the configuration file")

	root.AddCommand(newServeCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the command tree.
func Execute() error {
	return NewRootCommand().Execute()
}
