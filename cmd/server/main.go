package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "distributor-erp/internal/adapters/web"
	"distributor-erp/internal/app"
	"distributor-erp/internal/config"
	"distributor-erp/internal/core"
	"distributor-erp/internal/db"
	"distributor-erp/internal/logger"
	"distributor-erp/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("production", "info")
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := logger.New(cfg.App.Env, cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	ledger := core.NewLedger(pool)
	inventory := core.NewInventoryService(pool)
	documents := core.NewDocumentService(pool, ledger, inventory)
	m := metrics.New(nil)

	svc := app.NewAppService(documents, core.NewPartyService(pool), core.NewRuleEngine(pool), ledger, inventory, app.Options{
		CompanyCode:    cfg.ERP.CompanyCode,
		RoundOffLedger: cfg.ERP.RoundOffLedger,
		Metrics:        m,
		Logger:         log,
	})

	srv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: webAdapter.NewHandler(svc, log, webAdapter.Config{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			RequestTimeout: cfg.HTTP.RequestTimeout,
			Metrics:        m,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("addr", srv.Addr).Str("company", cfg.ERP.CompanyCode).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server")
	}
	log.Info().Msg("server stopped")
}
