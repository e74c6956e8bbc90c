package main

import (
	"fmt"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/database"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/logger"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL migrations",
		Long: `Apply the PostgreSQL migrations to the configured database.

The connection comes from the RESTAPI_DATABASE__* variables unless --dsn is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn != "" {
				obs := config.DefaultObservabilityConfig()
				log := logger.NewLogger(obs.Logging.Level, false)
				return database.MigrateDSN(cmd.Context(), &log, dsn)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.StorePostgres {
				return fmt.Errorf("migrate needs store.driver=%s, got %q", config.StorePostgres, cfg.Store.Driver)
			}

			log := logger.NewLogger(cfg.Observability.Logging.Level, cfg.Observability.IsProduction())
			return database.Migrate(cmd.Context(), &log, cfg)
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string, overrides the configuration")

	return cmd
}
