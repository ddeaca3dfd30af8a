// Package app provides the doorsync command-line interface.
package app

import (
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:               "doorsync",
	DisableAutoGenTag: true,
	Short:             "Offline-first synchronization agent for door access records",
	Long: `doorsync buffers door access events and diagnostics in a local SQLite
database and uploads them to the remote system in the background.  Records
survive connectivity loss and are retried until the remote accepts them.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// NewRootCmd assembles the root command and its subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file (YAML)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(addCmd)

	return rootCmd
}
