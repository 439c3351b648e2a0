package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgsentry/pgsentry/internal/config"
	"github.com/pgsentry/pgsentry/internal/logger"
	"github.com/pgsentry/pgsentry/internal/retention"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired local backup artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg config.Config
		if err := cfg.Load(ConfigFile); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log, err := logger.InitWithFile(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		sweeper := retention.NewSweeper(log)
		deleted, err := sweeper.Sweep(cfg.Backup.OutputDir, cfg.Retention.Days)
		if err != nil {
			return fmt.Errorf("sweep %s: %w", cfg.Backup.OutputDir, err)
		}

		fmt.Printf("deleted %d artifact(s) older than %d day(s)\n", deleted, cfg.Retention.Days)
		return nil
	},
}
