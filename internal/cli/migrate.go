package cli

import (
	"github.com/spf13/cobra"

	"github.com/nmslite/drivetemp/internal/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := a.logger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			pool, err := database.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			return database.RunMigrations(cmd.Context(), pool, logger)
		},
	}
}
