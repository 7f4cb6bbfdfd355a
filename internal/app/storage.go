// Package app assembles storage drivers and domain services for the binaries
// under cmd/ and for end-to-end tests.
package app

import (
	"context"
	"fmt"
	"time"

	"clinicrx/internal/config"
	"clinicrx/internal/core/idempotency"
	"clinicrx/internal/core/numerator"
	"clinicrx/internal/core/tx"
	"clinicrx/internal/domain/audit"
	"clinicrx/internal/domain/documents/invoice"
	"clinicrx/internal/domain/documents/purchase_order"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/domain/reports"
	infranumerator "clinicrx/internal/infrastructure/numerator"
	"clinicrx/internal/infrastructure/storage/memory"
	"clinicrx/internal/infrastructure/storage/postgres"
	"clinicrx/internal/infrastructure/storage/postgres/document_repo"
	"clinicrx/internal/infrastructure/storage/postgres/register_repo"
	"clinicrx/internal/infrastructure/storage/postgres/report_repo"
)

// Storage is one storage driver's set of repositories.
type Storage struct {
	Driver         string
	Stock          stock.Repository
	PurchaseOrders purchase_order.Repository
	Invoices       invoice.Repository
	DayReports     reports.Repository
	Tx             tx.ReadOnlyManager
	Audit          audit.Recorder
	History        audit.History
	Idempotency    idempotency.Store
	Numerator      numerator.Generator

	// Pool is set for the postgres driver only.
	Pool *postgres.Pool
}

// MemoryStorage builds the in-process driver.
func MemoryStorage(idempotencyTTL time.Duration) *Storage {
	store := memory.NewStore()
	rec := store.Audit()
	return &Storage{
		Driver:         config.DriverMemory,
		Stock:          store.Stock(),
		PurchaseOrders: store.PurchaseOrders(),
		Invoices:       store.Invoices(),
		DayReports:     store.DayReports(),
		Tx:             store.TxManager(),
		Audit:          rec,
		History:        rec,
		Idempotency:    memory.NewIdempotencyStore(idempotencyTTL),
		Numerator:      infranumerator.NewMemory(),
	}
}

// PostgresStorage builds the PostgreSQL driver on an open pool.
func PostgresStorage(pool *postgres.Pool, idempotencyTTL time.Duration) (*Storage, error) {
	txm := postgres.NewTxManager(pool)
	auditSvc, err := postgres.NewAuditService(txm)
	if err != nil {
		return nil, err
	}
	return &Storage{
		Driver:         config.DriverPostgres,
		Stock:          register_repo.NewStockRepo(txm),
		PurchaseOrders: document_repo.NewPurchaseOrderRepo(txm),
		Invoices:       document_repo.NewInvoiceRepo(txm),
		DayReports:     report_repo.NewDayReportRepo(txm),
		Tx:             txm,
		Audit:          auditSvc,
		History:        auditSvc,
		Idempotency:    postgres.NewIdempotencyStore(txm, idempotencyTTL),
		Numerator:      infranumerator.New(pool),
		Pool:           pool,
	}, nil
}

// OpenStorage opens the driver selected by cfg. The returned close func
// releases the pool, if any.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		return MemoryStorage(cfg.Idempotency.TTL), func() {}, nil
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.App.Name, cfg.Database))
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		st, err := PostgresStorage(pool, cfg.Idempotency.TTL)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
