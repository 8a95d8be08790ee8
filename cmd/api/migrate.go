package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"moodsun/api/internal/config"
	"moodsun/api/internal/logging"
	"moodsun/api/internal/store"
)

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Prepare the storage schema",
		Long: `Prepare the storage schema and exit.

PostgreSQL runs the embedded migrations (--down reverts all of them).
MongoDB creates the collection indexes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return migrate(ctx, *cfg, down)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "revert every PostgreSQL migration")
	return cmd
}

func migrate(ctx context.Context, cfg config.Config, down bool) error {
	log := logging.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if down {
			if err := store.RollbackMigrations(ctx, db); err != nil {
				return err
			}
			log.Info("migrations reverted")
			return nil
		}
		if err := store.ApplyMigrations(ctx, db); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil

	case config.DriverMongo:
		m, err := store.OpenMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close(context.Background()) }()
		if err := m.EnsureIndexes(ctx); err != nil {
			return err
		}
		log.Info("indexes ensured", zap.String("database", cfg.MongoDatabase))
		return nil

	case config.DriverMemory:
		log.Info("memory store needs no migration")
		return nil

	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
