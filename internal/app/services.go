package app

import (
	"time"

	"clinicrx/internal/core/lock"
	"clinicrx/internal/domain/documents/invoice"
	"clinicrx/internal/domain/documents/purchase_order"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/domain/reports"
)

// Options tune the domain services.
type Options struct {
	LedgerMode stock.Mode
	FuzzyNames bool
	// Cache may be nil.
	Cache stock.Cache
	// Locker may be nil; GRN runs are then not serialised per order.
	Locker  lock.Locker
	LockTTL time.Duration
	// Location is the business time zone for default document dates.
	Location *time.Location
}

// Services are the domain services exposed over HTTP and used by the worker.
type Services struct {
	Stock          *stock.Service
	PurchaseOrders *purchase_order.Service
	Receiver       *purchase_order.Receiver
	Invoices       *invoice.Service
	Reports        *reports.Service
}

// NewServices wires the domain services on st.
func NewServices(st *Storage, opts Options) *Services {
	cache := opts.Cache
	if cache == nil {
		cache = stock.NopCache{}
	}

	ledger := stock.NewLedger(st.Stock, cache, opts.LedgerMode)
	selector := stock.NewSelector(st.Stock, stock.MatchPolicy{Fuzzy: opts.FuzzyNames})

	orders := purchase_order.NewService(st.PurchaseOrders, st.Stock, st.Numerator).
		WithLocation(opts.Location)

	return &Services{
		Stock:          stock.NewService(st.Stock, cache, ledger, selector),
		PurchaseOrders: orders,
		Receiver: purchase_order.NewReceiver(purchase_order.ReceiverConfig{
			Repo:      st.PurchaseOrders,
			StockRepo: st.Stock,
			Resolver:  stock.NewResolver(st.Stock, cache),
			Ledger:    ledger,
			Numerator: st.Numerator,
			Locker:    opts.Locker,
			LockTTL:   opts.LockTTL,
			Audit:     st.Audit,
			Location:  opts.Location,
		}),
		Invoices: invoice.NewService(invoice.ServiceConfig{
			Repo:      st.Invoices,
			StockRepo: st.Stock,
			Selector:  selector,
			Ledger:    ledger,
			TxManager: st.Tx,
			Numerator: st.Numerator,
			Location:  opts.Location,
		}),
		Reports: reports.NewService(st.DayReports, st.Stock, st.Invoices, st.PurchaseOrders).
			WithSnapshot(st.Tx),
	}
}
