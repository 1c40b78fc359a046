package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"distributor-erp/internal/adapters/cli"
	"distributor-erp/internal/adapters/repl"
	"distributor-erp/internal/app"
	"distributor-erp/internal/config"
	"distributor-erp/internal/core"
	"distributor-erp/internal/db"
	"distributor-erp/internal/logger"
	"distributor-erp/internal/metrics"
)

// With arguments the binary runs one command and exits; without, it opens
// the interactive document entry prompt.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	level := cfg.App.LogLevel
	if len(os.Args) > 1 && level == "info" {
		level = "warn"
	}
	log := logger.New(cfg.App.Env, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	ledger := core.NewLedger(pool)
	inventory := core.NewInventoryService(pool)
	documents := core.NewDocumentService(pool, ledger, inventory)

	svc := app.NewAppService(documents, core.NewPartyService(pool), core.NewRuleEngine(pool), ledger, inventory, app.Options{
		CompanyCode:    cfg.ERP.CompanyCode,
		RoundOffLedger: cfg.ERP.RoundOffLedger,
		Metrics:        metrics.New(nil),
		Logger:         log,
	})

	if len(os.Args) > 1 {
		err = cli.Run(ctx, svc, os.Args[1:], os.Stdin, os.Stdout)
	} else {
		err = repl.Run(ctx, svc, bufio.NewReader(os.Stdin), os.Stdout)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		pool.Close()
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
