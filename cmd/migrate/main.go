package main

import (
	"context"

	"distributor-erp/internal/config"
	"distributor-erp/internal/db"
	"distributor-erp/internal/logger"
	"distributor-erp/migrations"

	flag "github.com/spf13/pflag"
)

func main() {
	resetDemo := flag.Bool("reset-demo", false, "wipe all data and reload the demo seed after migrating")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("production", "info")
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := logger.New(cfg.App.Env, cfg.App.LogLevel)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool, migrations.FS, log)
	if err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	log.Info().Int("applied", len(applied)).Strs("files", applied).Msg("migrations complete")

	if *resetDemo {
		if err := db.ResetDemo(ctx, pool, migrations.FS, log); err != nil {
			log.Fatal().Err(err).Msg("reset demo")
		}
	}
}
