package purchase_order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinicrx/internal/core/apperror"
	appctx "clinicrx/internal/core/context"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/numerator"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/pkg/logger"
)

// Service provides purchase order authoring (create, read, list).
// Receiving lives in Receiver.
type Service struct {
	repo      Repository
	stockRepo stock.Repository
	numerator numerator.Generator
	loc       *time.Location
}

// NewService creates a new purchase order service.
func NewService(repo Repository, stockRepo stock.Repository, gen numerator.Generator) *Service {
	return &Service{
		repo:      repo,
		stockRepo: stockRepo,
		numerator: gen,
	}
}

// WithLocation sets the time zone that decides the calendar day of undated orders.
func (s *Service) WithLocation(loc *time.Location) *Service {
	s.loc = loc
	return s
}

// CreateInput is the procurement form.
type CreateInput struct {
	Number    string
	Supplier  string
	OrderDate types.Date
	Comment   string
	Items     []Item
}

// Create stores a new Pending order. Every item must reference an existing
// stock batch; its medicine name is copied onto the line. A missing order
// date defaults to today.
func (s *Service) Create(ctx context.Context, in CreateInput) (*PurchaseOrder, error) {
	if in.OrderDate.IsZero() {
		in.OrderDate = types.Today(s.loc)
	}

	po := NewPurchaseOrder(in.Supplier, in.OrderDate)
	po.Number = strings.TrimSpace(in.Number)
	po.Comment = strings.TrimSpace(in.Comment)
	po.CreatedBy = appctx.GetOperatorID(ctx)
	for _, it := range in.Items {
		po.AddItem(it)
	}

	if err := po.Validate(ctx); err != nil {
		return nil, err
	}

	for i := range po.Items {
		b, err := s.stockRepo.GetByID(ctx, po.Items[i].StockItemID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewNotFound("stock item", po.Items[i].StockItemID).
					WithDetail("lineNo", po.Items[i].LineNo)
			}
			return nil, fmt.Errorf("load stock item for line %d: %w", po.Items[i].LineNo, err)
		}
		po.Items[i].MedicineName = b.MedicineName
	}

	if !po.HasNumber() {
		num, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixPurchaseOrder),
			&numerator.Options{Strategy: NumeratorStrategy}, po.Date.Time())
		if err != nil {
			return nil, fmt.Errorf("generate PO number: %w", err)
		}
		po.Number = num
	}

	if err := s.repo.Create(ctx, po); err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order created",
		"po_id", po.ID,
		"po_number", po.Number,
		"supplier", po.Supplier,
		"items", len(po.Items),
	)
	return po, nil
}

// GetByID returns an order with its items.
func (s *Service) GetByID(ctx context.Context, poID id.ID) (*PurchaseOrder, error) {
	return s.repo.GetByID(ctx, poID)
}

// List returns a page of orders.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseOrder], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}
