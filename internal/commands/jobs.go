package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/corebank-dev/corebatch/internal/joblog"
)

func newJobsCommand(cfgPath *string) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect registered jobs and past runs",
	}
	jobsCmd.AddCommand(newJobsListCommand(cfgPath), newJobsLogCommand(cfgPath))
	return jobsCmd
}

func newJobsListCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.Close()

			for _, name := range a.registry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newJobsLogCommand(cfgPath *string) *cobra.Command {
	var q joblog.Query

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the job run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, dir, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if cfg.JobLog.Dir == "" {
				return fmt.Errorf("job_log.dir is not set in %s", *cfgPath)
			}

			entries, err := joblog.New(resolvePath(dir, cfg.JobLog.Dir)).Read()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tJOB\tAS OF\tOUTCOME\tPROCESSED\tFAILURES\tRUN")
			for _, e := range joblog.Select(entries, q) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.Job, e.AsOfDate, e.Outcome, e.Processed, e.Failures, e.RunID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&q.Job, "job", "", "only show runs of this job")
	cmd.Flags().BoolVar(&q.FailedOnly, "failed", false, "only show failed runs")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "show at most this many recent runs (0 for all)")

	return cmd
}
