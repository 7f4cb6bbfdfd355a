package entity

import (
	"time"

	"clinicrx/internal/core/id"
)

// RecordType defines movement direction in the stock journal.
type RecordType string

const (
	// RecordTypeReceipt increases stock
	RecordTypeReceipt RecordType = "receipt"
	// RecordTypeExpense decreases stock
	RecordTypeExpense RecordType = "expense"
)

// Recorder types: which kind of operation produced a movement.
const (
	RecorderGoodsReceipt = "GoodsReceipt"
	RecorderInvoice      = "Invoice"
	RecorderAdjustment   = "Adjustment"
)

// Recorder identifies the document or action behind a stock change.
type Recorder struct {
	Type string `db:"recorder_type" json:"recorderType"`
	// ID is the purchase order, invoice or nil for manual adjustments
	ID id.ID `db:"recorder_id" json:"recorderId"`
	// Ref is a human readable reference (GRN number, invoice number, reason)
	Ref string `db:"recorder_ref" json:"recorderRef,omitempty"`
}

// StockMovement is one append-only entry of the stock journal.
// Movements are never updated; they explain every change of current_stock.
type StockMovement struct {
	LineID      id.ID      `db:"line_id" json:"lineId"`
	StockItemID id.ID      `db:"stock_item_id" json:"stockItemId"`
	RecordType  RecordType `db:"record_type" json:"recordType"`
	Recorder

	// Delta is the signed quantity change.
	Delta int64 `db:"delta" json:"delta"`
	// QuantityAfter is current_stock right after the write.
	QuantityAfter int64 `db:"quantity_after" json:"quantityAfter"`
	// Anomaly marks writes that left stock negative.
	Anomaly bool `db:"anomaly" json:"anomaly"`

	OperatorID string    `db:"operator_id" json:"operatorId,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement creates a journal entry for a delta applied to stockItemID.
func NewStockMovement(stockItemID id.ID, rec Recorder, delta, quantityAfter int64) StockMovement {
	rt := RecordTypeReceipt
	if delta < 0 {
		rt = RecordTypeExpense
	}
	return StockMovement{
		LineID:        id.New(),
		StockItemID:   stockItemID,
		RecordType:    rt,
		Recorder:      rec,
		Delta:         delta,
		QuantityAfter: quantityAfter,
		Anomaly:       quantityAfter < 0,
		CreatedAt:     time.Now().UTC(),
	}
}
