package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corebank-dev/corebatch/internal/config"
	"github.com/corebank-dev/corebatch/internal/store/postgres"
)

func newMigrateCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate needs the %s driver, config uses %s", config.DriverPostgres, cfg.Database.Driver)
			}

			s, err := postgres.Open(cmd.Context(), cfg.Database.DSN, postgres.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
			if err != nil {
				return err
			}
			defer s.Close()

			version, err := postgres.Migrate(s.DB())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", version)
			return nil
		},
	}
}
