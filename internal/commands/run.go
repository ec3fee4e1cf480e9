package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/corebank-dev/corebatch/internal/model"
)

func newRunCommand(cfgPath *string) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "run <job>",
		Short: "Run one batch job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.Close()

			date := a.registry.AsOfDate()
			if asOf != "" {
				if date, err = parseAsOf(asOf, date); err != nil {
					return err
				}
			}

			res := a.registry.RunJobAt(cmd.Context(), args[0], date)
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			if !res.Success {
				return errors.New("job failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "business date to run as (YYYY-MM-DD), defaults to today in the tenant time zone")

	return cmd
}

// parseAsOf parses a business date that must not be after today.
func parseAsOf(s string, today time.Time) (time.Time, error) {
	date, err := model.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	if date.After(today) {
		return time.Time{}, fmt.Errorf("as-of date %s is in the future", s)
	}
	return date, nil
}
