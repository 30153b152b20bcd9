package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tradeledger/internal/app"
	"tradeledger/internal/platform/config"
	"tradeledger/internal/platform/httpserver"
	"tradeledger/internal/platform/logger"
)

const shutdownTimeout = 10 * time.Second

// main loads configuration, builds the application graph and runs the HTTP
// server alongside background workers until a signal arrives.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log, app.NewMetrics())
	if err != nil {
		log.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	srv := httpserver.New(cfg.Addr, application.Handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting tradeledger", "addr", cfg.Addr, "recalc_mode", cfg.Recalc.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return application.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	application.Close()
	if err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
