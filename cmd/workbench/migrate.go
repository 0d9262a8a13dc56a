package main

import (
	"context"
	"fmt"
	"time"

	"github.com/l1jgo/workbench/internal/logbridge"
	"github.com/l1jgo/workbench/internal/persist"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Apply, roll back or inspect the scene database schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	action := "up"
	if len(args) == 1 {
		action = args[0]
	}
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logbridge.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	switch action {
	case "up":
		if err := persist.RunMigrations(ctx, db.Pool); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	case "down":
		if err := persist.RollbackMigration(ctx, db.Pool); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
	}
	v, err := persist.MigrationVersion(ctx, db.Pool)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	log.Info("schema version", zap.String("action", action), zap.Int64("version", v))
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
