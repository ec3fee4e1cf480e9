package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/corebank-dev/corebatch/internal/closure"
	"github.com/corebank-dev/corebatch/internal/config"
	"github.com/corebank-dev/corebatch/internal/model"
)

const closureJobName = "closure"

func newClosureCommand(cfgPath *string) *cobra.Command {
	closureCmd := &cobra.Command{
		Use:   "closure",
		Short: "Manage branch closures",
	}
	closureCmd.AddCommand(
		newClosureCreateCommand(cfgPath),
		newClosureReopenCommand(cfgPath),
		newClosureShowCommand(cfgPath),
		newClosureListCommand(cfgPath),
	)
	return closureCmd
}

func newClosureCreateCommand(cfgPath *string) *cobra.Command {
	var date string
	var comments string

	cmd := &cobra.Command{
		Use:   "create <office-id>",
		Short: "Close an office's books through a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			officeID, err := parseOfficeID(args[0])
			if err != nil {
				return err
			}
			closingDate, err := model.ParseDate(date)
			if err != nil {
				return fmt.Errorf("parsing --date: %w", err)
			}

			if err := requireDurableClosures(*cfgPath, "create"); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *cfgPath, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.Close()

			rc := model.NewRunContext(a.cfg.Tenant.ID, closureJobName, a.registry.AsOfDate())
			rec, err := a.closures.Create(cmd.Context(), rc, officeID, closingDate, comments)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", closure.String(rec))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "closing date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("date")
	cmd.Flags().StringVar(&comments, "comments", "", "operator comments")

	return cmd
}

func newClosureReopenCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <office-id>",
		Short: "Reopen an office's latest closure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			officeID, err := parseOfficeID(args[0])
			if err != nil {
				return err
			}

			if err := requireDurableClosures(*cfgPath, "reopen"); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *cfgPath, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.Close()

			rc := model.NewRunContext(a.cfg.Tenant.ID, closureJobName, a.registry.AsOfDate())
			rec, err := a.closures.Reopen(cmd.Context(), rc, officeID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reopened %s\n", closure.String(rec))
			return nil
		},
	}
}

func newClosureShowCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <office-id>",
		Short: "Show an office's effective closure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			officeID, err := parseOfficeID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *cfgPath, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.Close()

			rc := model.NewRunContext(a.cfg.Tenant.ID, closureJobName, a.registry.AsOfDate())
			rec, err := a.closures.Latest(cmd.Context(), rc, officeID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), closure.String(rec))
			return nil
		},
	}
}

func newClosureListCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <office-id>",
		Short: "List every closure of an office, reopened ones included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			officeID, err := parseOfficeID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *cfgPath, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.Close()

			rc := model.NewRunContext(a.cfg.Tenant.ID, closureJobName, a.registry.AsOfDate())
			history, err := a.closures.History(cmd.Context(), rc, officeID)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "office %d has no closures\n", officeID)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCLOSED THROUGH\tSTATE\tCREATED\tCOMMENTS")
			for _, rec := range history {
				state := "effective"
				if rec.Deleted {
					state = "reopened"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", rec.ID, model.FormatDate(rec.ClosingDate), state,
					rec.CreatedAt.UTC().Format(time.RFC3339), rec.Comments)
			}
			return w.Flush()
		},
	}
}

// requireDurableClosures rejects closure changes the memory driver would drop on exit.
func requireDurableClosures(cfgPath, verb string) error {
	cfg, _, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("closure %s needs the %s driver, config uses %s", verb, config.DriverPostgres, cfg.Database.Driver)
	}
	return nil
}

func parseOfficeID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid office id %q", s)
	}
	return id, nil
}
