package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Other commands migrate on startup as well; run this once after an upgrade
to do it explicitly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			slog.Info("Running database migrations", "database", settings.DatabasePath)
			store, err := initStorage(cmd.Context(), settings)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			defer func() { _ = store.Close() }()

			slog.Info("Database migrations completed")
			return nil
		},
	}
}
