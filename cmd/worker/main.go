// Package main is the entry point for the ClinicRx background worker.
// It freezes opening stock for the current day and sweeps expired
// idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"clinicrx/internal/app"
	"clinicrx/internal/config"
	"clinicrx/internal/core/idempotency"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/reports"
	"clinicrx/internal/infrastructure/storage/postgres"
	"clinicrx/pkg/logger"
)

const idempotencyCleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.IsDevelopment(),
		Service:     cfg.App.Name + "-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	loc, err := cfg.Worker.Location()
	if err != nil {
		log.Fatalw("invalid worker timezone", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting clinicrx worker",
		"snapshot_interval", cfg.Worker.SnapshotInterval.String(),
		"timezone", loc.String(),
	)

	rt, err := app.NewRuntime(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize runtime", "error", err)
	}
	defer rt.Close()

	worker := NewWorker(rt.Services.Reports, rt.Storage.Idempotency, loc, cfg.Worker.SnapshotInterval, log)
	worker.pool = rt.Storage.Pool

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the periodic jobs.
type Worker struct {
	reports  *reports.Service
	sweeper  idempotency.Sweeper
	loc      *time.Location
	interval time.Duration
	log      *logger.Logger

	// pool is nil on the in-memory driver.
	pool *postgres.Pool
}

// NewWorker creates a worker. The idempotency store is swept only when it
// supports expiry cleanup.
func NewWorker(rs *reports.Service, store idempotency.Store, loc *time.Location, interval time.Duration, log *logger.Logger) *Worker {
	w := &Worker{
		reports:  rs,
		loc:      loc,
		interval: interval,
		log:      log.WithComponent("worker"),
	}
	if sw, ok := store.(idempotency.Sweeper); ok {
		w.sweeper = sw
	}
	return w
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	snapshotTicker := time.NewTicker(w.interval)
	defer snapshotTicker.Stop()

	cleanupTicker := time.NewTicker(idempotencyCleanupInterval)
	defer cleanupTicker.Stop()

	// Initial capture so a fresh day gets its openings without waiting a full interval.
	w.captureOpenings(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-snapshotTicker.C:
			w.captureOpenings(ctx)
		case <-cleanupTicker.C:
			w.cleanupIdempotency(ctx)
			if w.pool != nil {
				postgres.LogPoolStats(ctx, w.pool.Unwrap())
			}
		}
	}
}

func (w *Worker) captureOpenings(ctx context.Context) {
	date := types.Today(w.loc)
	n, err := w.reports.CaptureOpenings(ctx, date)
	if err != nil {
		w.log.Errorw("capture openings failed", "date", date.String(), "captured", n, "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("captured openings", "date", date.String(), "count", n)
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	if w.sweeper == nil {
		return
	}
	removed, err := w.sweeper.CleanupExpired(ctx)
	if err != nil {
		w.log.Warnw("idempotency cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", removed)
	}
}
