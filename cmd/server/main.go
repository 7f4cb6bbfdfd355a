// Package main is the entry point for the ClinicRx API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinicrx/internal/app"
	"clinicrx/internal/config"
	v1 "clinicrx/internal/infrastructure/http/v1"
	"clinicrx/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.IsDevelopment(),
		Service:     cfg.App.Name,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting clinicrx server", "env", cfg.App.Env, "driver", cfg.Database.Driver)

	rt, err := app.NewRuntime(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize runtime", "error", err)
	}
	defer rt.Close()

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		AppName:            cfg.App.Name,
		Logger:             log,
		Pool:               rt.Storage.Pool,
		HealthChecks:       rt.Checks,
		Stock:              rt.Services.Stock,
		PurchaseOrders:     rt.Services.PurchaseOrders,
		Receiver:           rt.Services.Receiver,
		Invoices:           rt.Services.Invoices,
		Reports:            rt.Services.Reports,
		AuditHistory:       rt.Storage.History,
		IdempotencyEnabled: cfg.Idempotency.Enabled,
		IdempotencyStore:   rt.Storage.Idempotency,
		Debug:              cfg.IsDevelopment(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
