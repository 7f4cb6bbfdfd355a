// Package memory provides an in-process implementation of every repository,
// used for development runs (database.driver = "memory") and tests.
package memory

import (
	"context"
	"sync"

	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/id"
	"clinicrx/internal/domain/audit"
	"clinicrx/internal/domain/documents/invoice"
	"clinicrx/internal/domain/documents/purchase_order"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/domain/reports"
)

// Store holds all state behind one mutex. Repositories are thin views over it.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	batches   map[id.ID]*stock.Batch
	movements []entity.StockMovement
	orders    map[id.ID]*purchase_order.PurchaseOrder
	invoices  map[id.ID]*invoice.Invoice
	openings  map[string]map[string]int64 // date -> medicine key -> qty
	cash      map[string]reports.CashCount
	audit     []audit.Entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		batches:  make(map[id.ID]*stock.Batch),
		orders:   make(map[id.ID]*purchase_order.PurchaseOrder),
		invoices: make(map[id.ID]*invoice.Invoice),
		openings: make(map[string]map[string]int64),
		cash:     make(map[string]reports.CashCount),
	}
}

func (s *Store) Stock() *StockRepo                  { return &StockRepo{s: s} }
func (s *Store) PurchaseOrders() *PurchaseOrderRepo { return &PurchaseOrderRepo{s: s} }
func (s *Store) Invoices() *InvoiceRepo             { return &InvoiceRepo{s: s} }
func (s *Store) DayReports() *DayReportRepo         { return &DayReportRepo{s: s} }
func (s *Store) Audit() *AuditRecorder              { return &AuditRecorder{s: s} }
func (s *Store) TxManager() *TxManager              { return &TxManager{s: s} }

// Ping implements the health check contract.
func (s *Store) Ping(context.Context) error { return nil }
