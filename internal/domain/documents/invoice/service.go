package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinicrx/internal/core/apperror"
	appctx "clinicrx/internal/core/context"
	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/numerator"
	"clinicrx/internal/core/tx"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/pkg/logger"
)

// Service creates dispensing invoices.
type Service struct {
	repo      Repository
	stockRepo stock.Repository
	selector  *stock.Selector
	ledger    *stock.Ledger
	txManager tx.Manager
	numerator numerator.Generator
	loc       *time.Location
}

// ServiceConfig wires the invoice service.
type ServiceConfig struct {
	Repo      Repository
	StockRepo stock.Repository
	Selector  *stock.Selector
	Ledger    *stock.Ledger
	TxManager tx.Manager
	Numerator numerator.Generator
	// Location decides the calendar day of undated invoices; nil means time.Local.
	Location *time.Location
}

// NewService creates a new invoice service.
func NewService(cfg ServiceConfig) *Service {
	txm := cfg.TxManager
	if txm == nil {
		txm = tx.Passthrough
	}
	return &Service{
		repo:      cfg.Repo,
		stockRepo: cfg.StockRepo,
		selector:  cfg.Selector,
		ledger:    cfg.Ledger,
		txManager: txm,
		numerator: cfg.Numerator,
		loc:       cfg.Location,
	}
}

// CreateInput is the billing form.
type CreateInput struct {
	Number      string
	Date        types.Date
	PatientRef  string
	PaymentMode PaymentMode
	Comment     string
	Lines       []Line
}

// Create assigns batches, checks that every line is covered by stock and
// decrements the batches, all in one transaction. If any line is short the
// whole invoice fails with INSUFFICIENT_STOCK and no stock changes.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Invoice, error) {
	if in.Date.IsZero() {
		in.Date = types.Today(s.loc)
	}

	inv := NewInvoice(in.Date, in.PaymentMode)
	inv.Number = strings.TrimSpace(in.Number)
	inv.PatientRef = strings.TrimSpace(in.PatientRef)
	inv.Comment = strings.TrimSpace(in.Comment)
	inv.CreatedBy = appctx.GetOperatorID(ctx)
	for _, l := range in.Lines {
		inv.AddLine(l)
	}

	if err := inv.Validate(ctx); err != nil {
		return nil, err
	}

	// Numbers are taken outside the business transaction.
	if !inv.HasNumber() {
		num, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixInvoice),
			&numerator.Options{Strategy: NumeratorStrategy}, inv.Date.Time())
		if err != nil {
			return nil, fmt.Errorf("generate invoice number: %w", err)
		}
		inv.Number = num
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.assignBatches(ctx, inv); err != nil {
			return err
		}
		if err := s.checkAvailability(ctx, inv); err != nil {
			return err
		}

		rec := entity.Recorder{Type: entity.RecorderInvoice, ID: inv.ID, Ref: inv.Number}
		for _, l := range inv.Lines {
			if _, err := s.ledger.Decrement(ctx, *l.StockItemID, l.Quantity, rec); err != nil {
				return err
			}
		}

		inv.RecalculateTotals()
		return s.repo.Create(ctx, inv)
	})
	if err != nil {
		if apperror.IsCode(err, apperror.CodeInsufficientStock) {
			logger.Warn(ctx, "invoice blocked by insufficient stock",
				"invoice_number", inv.Number, "error", err)
		}
		return nil, err
	}

	logger.Info(ctx, "invoice created",
		"invoice_id", inv.ID,
		"invoice_number", inv.Number,
		"lines", len(inv.Lines),
		"total", inv.TotalAmount.StringFixed(2),
	)
	return inv, nil
}

// assignBatches pins every line to a batch: explicit stock item, then explicit
// batch number, then FIFO. FIFO skips batches already drained by earlier lines
// of the same invoice.
func (s *Service) assignBatches(ctx context.Context, inv *Invoice) error {
	demand := make(map[id.ID]int64)

	for i := range inv.Lines {
		l := &inv.Lines[i]

		var (
			b   *stock.Batch
			err error
		)
		switch {
		case l.StockItemID != nil:
			b, err = s.stockRepo.GetByID(ctx, *l.StockItemID)
		case l.BatchNo != "":
			b, err = s.stockRepo.FindByKey(ctx, l.MedicineKey, l.BatchNo)
		default:
			b, err = s.pickFIFO(ctx, l, demand)
			l.AutoAssigned = b != nil
		}
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("stock batch", lineRef(l)).WithDetail("lineNo", l.LineNo)
			}
			return err
		}
		if b == nil {
			return apperror.NewInsufficientStock("", l.MedicineName, l.Quantity, 0).
				WithDetail("lineNo", l.LineNo)
		}

		bid := b.ID
		l.StockItemID = &bid
		l.MedicineName = b.MedicineName
		l.MedicineKey = b.MedicineKey
		l.BatchNo = b.BatchNo
		l.Category = b.Category
		l.MRP = b.MRP
		if !l.UnitPrice.IsPositive() {
			l.UnitPrice = b.MRP
		}
		demand[b.ID] += l.Quantity
	}
	return nil
}

func (s *Service) pickFIFO(ctx context.Context, l *Line, demand map[id.ID]int64) (*stock.Batch, error) {
	candidates, err := s.selector.Candidates(ctx, l.MedicineName)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.CurrentStock-demand[c.ID] > 0 {
			return c, nil
		}
	}
	return nil, nil
}

// checkAvailability compares total demand per batch against a fresh read of
// current_stock before anything is decremented.
func (s *Service) checkAvailability(ctx context.Context, inv *Invoice) error {
	demand := make(map[id.ID]int64)
	order := make([]*Line, 0, len(inv.Lines))
	for i := range inv.Lines {
		l := &inv.Lines[i]
		if _, seen := demand[*l.StockItemID]; !seen {
			order = append(order, l)
		}
		demand[*l.StockItemID] += l.Quantity
	}

	for _, l := range order {
		available, err := s.stockRepo.GetCurrentStock(ctx, *l.StockItemID)
		if err != nil {
			return err
		}
		if requested := demand[*l.StockItemID]; requested > available {
			return apperror.NewInsufficientStock(l.StockItemID.String(),
				fmt.Sprintf("%s (batch %s)", l.MedicineName, l.BatchNo), requested, available).
				WithDetail("lineNo", l.LineNo)
		}
	}
	return nil
}

// GetByID returns an invoice with its lines.
func (s *Service) GetByID(ctx context.Context, invID id.ID) (*Invoice, error) {
	return s.repo.GetByID(ctx, invID)
}

// List returns a page of invoices.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

func lineRef(l *Line) string {
	if l.StockItemID != nil {
		return l.StockItemID.String()
	}
	return strings.TrimSpace(l.MedicineName + " " + l.BatchNo)
}
