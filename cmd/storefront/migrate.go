package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeMC777/storefront/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log := loadConfig()
	ctx := cmd.Context()

	pool, err := database.Connect(ctx, cfg.PostgresDSN, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Msg("schema up to date")
	return nil
}
