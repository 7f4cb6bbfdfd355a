package invoice

import (
	"context"

	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain"
	"clinicrx/internal/domain/registers/stock"
)

// Repository defines operations for invoices.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, invID id.ID) (*Invoice, error)
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error)

	// SumSoldQuantity totals quantities of lines dated date that point to any
	// of itemIDs, plus lines without a stock item whose medicine_key matches.
	SumSoldQuantity(ctx context.Context, date types.Date, itemIDs []id.ID, medicineKey string) (int64, error)

	// SalesByCategory totals line amounts per category for invoices dated date.
	SalesByCategory(ctx context.Context, date types.Date) (map[stock.Category]types.Money, error)
}

// ListFilter for filtering invoices.
type ListFilter struct {
	domain.ListFilter

	Date        *types.Date
	PaymentMode *PaymentMode
}
