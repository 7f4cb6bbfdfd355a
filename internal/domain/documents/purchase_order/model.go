// Package purchase_order provides the PurchaseOrder document and the goods
// receipt (GRN) pipeline that turns a pending order into stock.
package purchase_order

import (
	"context"
	"strings"
	"time"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/registers/stock"
)

// DocumentType is the recorder type used in the stock journal and audit trail.
const DocumentType = "PurchaseOrder"

// Status of a purchase order. Pending -> Received is the only transition.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusReceived Status = "Received"
)

// PurchaseOrder is an order placed with a supplier.
// Number is the PO number and Date the order date.
type PurchaseOrder struct {
	entity.Document

	Supplier string `db:"supplier" json:"supplier"`
	Status   Status `db:"status" json:"status"`

	// Populated by the receiving pipeline only.
	GRNNumber  string     `db:"grn_number" json:"grnNumber,omitempty"`
	GRNDate    types.Date `db:"grn_date" json:"grnDate"`
	ReceivedAt *time.Time `db:"received_at" json:"receivedAt,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// Item is one ordered line. Received is filled when the order is received.
type Item struct {
	LineNo          int          `db:"line_no" json:"lineNo"`
	StockItemID     id.ID        `db:"stock_item_id" json:"stockItemId"`
	MedicineName    string       `db:"medicine_name" json:"medicineName"`
	OrderedQuantity int64        `db:"ordered_quantity" json:"orderedQuantity"`
	UnitPrice       types.Money  `db:"unit_price" json:"unitPrice"`
	MRP             types.Money  `db:"mrp" json:"mrp"`
	BatchNo         string       `db:"batch_no" json:"batchNo,omitempty"`
	ExpiryDate      stock.Expiry `db:"expiry_date" json:"expiryDate,omitempty"`

	Received *ReceivedLine `db:"-" json:"received,omitempty"`
}

// ReceivedLine is what was physically received for an order line, kept for audit.
type ReceivedLine struct {
	LineNo      int           `json:"lineNo"`
	Quantity    int64         `json:"quantity"`
	StockItemID id.ID         `json:"stockItemId"`
	BatchNo     string        `json:"batchNo"`
	ExpiryDate  stock.Expiry  `json:"expiryDate"`
	CostPrice   types.Money   `json:"costPrice"`
	MRP         types.Money   `json:"mrp"`
	Outcome     OutcomeStatus `json:"outcome"`
}

// NewPurchaseOrder creates a pending order.
func NewPurchaseOrder(supplier string, orderDate types.Date) *PurchaseOrder {
	return &PurchaseOrder{
		Document: entity.NewDocument(orderDate),
		Supplier: strings.TrimSpace(supplier),
		Status:   StatusPending,
		Items:    make([]Item, 0),
	}
}

// AddItem appends a line numbered after the existing ones.
func (po *PurchaseOrder) AddItem(item Item) {
	item.LineNo = len(po.Items) + 1
	item.BatchNo = stock.NormalizeBatchNo(item.BatchNo)
	item.ExpiryDate = stock.NormalizeExpiry(string(item.ExpiryDate))
	po.Items = append(po.Items, item)
}

// Item returns the line with lineNo.
func (po *PurchaseOrder) Item(lineNo int) (*Item, bool) {
	for i := range po.Items {
		if po.Items[i].LineNo == lineNo {
			return &po.Items[i], true
		}
	}
	return nil, false
}

// IsReceived reports the terminal state.
func (po *PurchaseOrder) IsReceived() bool {
	return po.Status == StatusReceived
}

// TotalAmount is the ordered value at cost.
func (po *PurchaseOrder) TotalAmount() types.Money {
	total := types.Zero()
	for _, it := range po.Items {
		total = total.Add(types.LineAmount(it.UnitPrice, it.OrderedQuantity))
	}
	return total
}

var _ entity.Validatable = (*PurchaseOrder)(nil)

// Validate implements entity.Validatable.
func (po *PurchaseOrder) Validate(ctx context.Context) error {
	if err := po.Document.Validate(ctx); err != nil {
		return err
	}

	if po.Supplier == "" {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplier")
	}

	if len(po.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	for _, it := range po.Items {
		if id.IsNil(it.StockItemID) {
			return apperror.NewValidation("stock item is required").
				WithDetail("field", "items").
				WithDetail("lineNo", it.LineNo)
		}
		if it.OrderedQuantity <= 0 {
			return apperror.NewValidation("ordered quantity must be positive").
				WithDetail("field", "items").
				WithDetail("lineNo", it.LineNo)
		}
		if it.UnitPrice.IsNegative() || it.MRP.IsNegative() {
			return apperror.NewValidation("prices cannot be negative").
				WithDetail("field", "items").
				WithDetail("lineNo", it.LineNo)
		}
	}

	return nil
}
