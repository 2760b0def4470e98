package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/keyxmakerx/vpanel/internal/config"
	"github.com/keyxmakerx/vpanel/internal/database"
)

func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations, or roll back the last one with --down",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			setupLogging(cfg)

			db, err := database.NewMariaDB(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("connecting to MariaDB: %w", err)
			}
			defer func() { _ = db.Close() }()

			if down {
				if err := database.RollbackMigration(db, cfg.MigrationsPath); err != nil {
					return err
				}
				slog.Info("rolled back one migration")
				return nil
			}
			return database.RunMigrations(db, cfg.MigrationsPath)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}
