package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"clinicrx/internal/config"
	corelock "clinicrx/internal/core/lock"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/infrastructure/cache"
	"clinicrx/internal/infrastructure/http/v1/handlers"
	"clinicrx/internal/infrastructure/lock"
	"clinicrx/pkg/logger"
)

// redisPinger adapts a redis client to the health check interface.
type redisPinger struct {
	client redis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Runtime is a fully wired process: storage, cache, locker and services.
type Runtime struct {
	Config   *config.Config
	Storage  *Storage
	Services *Services

	// Checks are readiness probes beyond the database.
	Checks map[string]handlers.Pinger

	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// NewRuntime opens storage and builds services from cfg. The local stock
// cache is started and must be stopped via Close.
func NewRuntime(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	rt := &Runtime{
		Config: cfg,
		Checks: make(map[string]handlers.Pinger),
	}

	st, closeStorage, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.Storage = st
	rt.closers = append(rt.closers, closeStorage)

	var (
		stockCache stock.Cache
		locker     corelock.Locker
	)

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		rt.Checks["redis"] = redisPinger{client: client}

		stockCache = cache.NewRedisStockCache(client, cfg.Redis.CacheTTL)
		locker = lock.NewRedisLocker(client)
		log.Infow("redis enabled", "addr", cfg.Redis.Addr)
	} else {
		var pool *pgxpool.Pool
		if st.Pool != nil {
			pool = st.Pool.Unwrap()
		}
		local := cache.NewStockCache(pool, cfg.Redis.CacheTTL)
		if err := local.Start(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("start stock cache: %w", err)
		}
		rt.closers = append(rt.closers, local.Stop)

		stockCache = local
		locker = lock.NewLocalLocker()
	}

	loc, err := cfg.Worker.Location()
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Services = NewServices(st, Options{
		LedgerMode: stock.ParseMode(cfg.Ledger.Mode),
		FuzzyNames: cfg.Ledger.FuzzyNames,
		Cache:      stockCache,
		Locker:     locker,
		LockTTL:    cfg.Receiving.LockTTL,
		Location:   loc,
	})

	log.Infow("storage ready",
		"driver", st.Driver,
		"ledger_mode", cfg.Ledger.Mode,
		"fuzzy_names", cfg.Ledger.FuzzyNames,
		"timezone", loc.String(),
	)
	return rt, nil
}
