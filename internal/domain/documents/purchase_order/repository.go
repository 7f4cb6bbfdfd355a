package purchase_order

import (
	"context"

	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain"
)

// Repository defines operations for purchase orders.
type Repository interface {
	// Create inserts the order with its items.
	Create(ctx context.Context, po *PurchaseOrder) error
	GetByID(ctx context.Context, poID id.ID) (*PurchaseOrder, error)
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*PurchaseOrder], error)

	// GetStatus reads only the status column, bypassing any cached document.
	GetStatus(ctx context.Context, poID id.ID) (Status, error)

	// SaveReceivedLines stores received quantity, batch, expiry and price on
	// the order's line records keyed by (order id, line no).
	SaveReceivedLines(ctx context.Context, poID id.ID, lines []ReceivedLine) error

	// MarkReceived flips Pending to Received and sets the GRN fields without
	// touching the items. It returns false when the order was not Pending.
	MarkReceived(ctx context.Context, poID id.ID, grnNumber string, grnDate types.Date) (bool, error)

	// SumReceivedQuantity totals received quantities of lines applied to any of
	// itemIDs on orders received with grn_date = date.
	SumReceivedQuantity(ctx context.Context, date types.Date, itemIDs []id.ID) (int64, error)
}

// ListFilter for filtering purchase orders.
type ListFilter struct {
	domain.ListFilter

	Status   *Status
	Supplier string
	DateFrom *types.Date
	DateTo   *types.Date
}
