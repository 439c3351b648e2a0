package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgsentry/pgsentry/internal/logger"
)

// ConfigFile is the path to the YAML configuration.
var (
	ConfigFile string

	rootCmd = &cobra.Command{
		Use:   "pgsentry",
		Short: "PostgreSQL backup orchestration engine",
		Long: `pgsentry runs a fixed pipeline of PostgreSQL backup tasks
(logical dump, physical base backup), uploads the produced artifacts to
remote storage, notifies operators and prunes expired local backups.

It is designed to be triggered by an external scheduler such as cron;
one invocation is one run.`,
	}
)

// Execute runs the root command.
func Execute() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "/etc/pgsentry/config.yaml", "path to YAML config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(reportCmd)
}
