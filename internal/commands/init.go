package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/corebank-dev/corebatch/internal/accounts"
	"github.com/corebank-dev/corebatch/internal/config"
)

// demoSeedFile is the account seed written by init --demo.
const demoSeedFile = "accounts.csv"

func newInitCommand() *cobra.Command {
	var tenantID string
	var timezone string
	var demo bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a default corebatch.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(absDir, tenantID, timezone, demo); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized corebatch config at %s\n", filepath.Join(absDir, config.FileName))
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "default", "tenant identifier")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "tenant time zone (IANA name)")
	cmd.Flags().BoolVar(&demo, "demo", false, "write a demo account seed for the memory driver")

	return cmd
}

func runInit(dir, tenantID, timezone string, demo bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	cfg := config.Default()
	cfg.Tenant.ID = tenantID
	cfg.Tenant.Timezone = timezone
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(dir, cfg.JobLog.Dir), 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", cfg.JobLog.Dir, err)
	}

	if demo {
		cfg.Database.SeedFile = demoSeedFile
		seed := accounts.DemoAccounts(tenantID, time.Now().In(loc))
		if err := accounts.Save(filepath.Join(dir, demoSeedFile), seed); err != nil {
			return fmt.Errorf("writing demo accounts: %w", err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
