package commands

import (
	"github.com/spf13/cobra"

	"github.com/corebank-dev/corebatch/internal/buildinfo"
	"github.com/corebank-dev/corebatch/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:     "corebatch",
		Short:   "End-of-day batch jobs for savings accounts",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.FileName, "path to corebatch.yaml")

	rootCmd.AddCommand(
		newInitCommand(),
		newMigrateCommand(&cfgPath),
		newRunCommand(&cfgPath),
		newServeCommand(&cfgPath),
		newClosureCommand(&cfgPath),
		newJobsCommand(&cfgPath),
	)

	return rootCmd
}
