package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pgsentry/pgsentry/internal/config"
	"github.com/pgsentry/pgsentry/internal/history"
)

var reportLimit int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show recent run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg config.Config
		if err := cfg.Load(ConfigFile); err != nil {
			return err
		}
		if cfg.History.DSN == "" {
			return fmt.Errorf("history.dsn is not configured")
		}

		repo, err := history.Open(cfg.History.DSN)
		if err != nil {
			return err
		}
		defer repo.Close()

		records, err := repo.Recent(cmd.Context(), reportLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOKEN\tDATABASE\tVERDICT\tTASKS\tBYTES\tSTARTED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%s\n",
				r.Token,
				r.TargetDb,
				r.Verdict,
				r.TasksTotal-r.TasksFailed, r.TasksTotal,
				r.BytesTotal,
				r.StartedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

func init() {
	reportCmd.Flags().IntVarP(&reportLimit, "limit", "n", 20, "number of runs to show")
}
