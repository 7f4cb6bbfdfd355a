// Package invoice provides the dispensing Invoice document. Creating an
// invoice takes stock out of the batches its lines are assigned to.
package invoice

import (
	"context"
	"strings"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/registers/stock"
)

// DocumentType is the recorder type used in the stock journal.
const DocumentType = "Invoice"

// PaymentMode of an invoice.
type PaymentMode string

const (
	PaymentCash    PaymentMode = "cash"
	PaymentDigital PaymentMode = "digital"
)

// Invoice is a dispensing bill. Number is the invoice number, Date the invoice date.
type Invoice struct {
	entity.Document

	PatientRef  string      `db:"patient_ref" json:"patientRef,omitempty"`
	PaymentMode PaymentMode `db:"payment_mode" json:"paymentMode"`
	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one dispensed item. StockItemID or BatchNo pin a batch chosen by
// hand; otherwise the batch is assigned by FIFO when the invoice is created.
type Line struct {
	LineNo       int            `db:"line_no" json:"lineNo"`
	StockItemID  *id.ID         `db:"stock_item_id" json:"stockItemId,omitempty"`
	MedicineName string         `db:"medicine_name" json:"medicineName"`
	MedicineKey  string         `db:"medicine_key" json:"-"`
	BatchNo      string         `db:"batch_no" json:"batchNo,omitempty"`
	Category     stock.Category `db:"category" json:"category"`
	Quantity     int64          `db:"quantity" json:"quantity"`
	UnitPrice    types.Money    `db:"unit_price" json:"unitPrice"`
	MRP          types.Money    `db:"mrp" json:"mrp"`
	Amount       types.Money    `db:"amount" json:"amount"`
	// AutoAssigned is true when the batch was chosen by FIFO.
	AutoAssigned bool `db:"auto_assigned" json:"autoAssigned"`
}

// NewInvoice creates an empty invoice dated date.
func NewInvoice(date types.Date, mode PaymentMode) *Invoice {
	if mode == "" {
		mode = PaymentCash
	}
	return &Invoice{
		Document:    entity.NewDocument(date),
		PaymentMode: mode,
		TotalAmount: types.Zero(),
		Lines:       make([]Line, 0),
	}
}

// AddLine appends a line numbered after the existing ones.
func (inv *Invoice) AddLine(l Line) {
	l.LineNo = len(inv.Lines) + 1
	l.MedicineName = strings.TrimSpace(l.MedicineName)
	l.MedicineKey = stock.NormalizeName(l.MedicineName)
	l.BatchNo = stock.NormalizeBatchNo(l.BatchNo)
	inv.Lines = append(inv.Lines, l)
}

// RecalculateTotals updates line amounts and the invoice total.
func (inv *Invoice) RecalculateTotals() {
	total := types.Zero()
	for i := range inv.Lines {
		inv.Lines[i].Amount = types.LineAmount(inv.Lines[i].UnitPrice, inv.Lines[i].Quantity)
		total = total.Add(inv.Lines[i].Amount)
	}
	inv.TotalAmount = total
}

var _ entity.Validatable = (*Invoice)(nil)

// Validate implements entity.Validatable.
func (inv *Invoice) Validate(ctx context.Context) error {
	if err := inv.Document.Validate(ctx); err != nil {
		return err
	}

	switch inv.PaymentMode {
	case PaymentCash, PaymentDigital:
	default:
		return apperror.NewValidation("unknown payment mode").
			WithDetail("field", "paymentMode").
			WithDetail("value", inv.PaymentMode)
	}

	if len(inv.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for _, l := range inv.Lines {
		if l.StockItemID == nil && l.MedicineKey == "" {
			return apperror.NewValidation("medicine or stock item is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", l.LineNo)
		}
		if l.Quantity <= 0 {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", l.LineNo)
		}
		if l.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", l.LineNo)
		}
	}

	return nil
}
