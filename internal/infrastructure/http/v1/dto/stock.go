package dto

import (
	"time"

	"clinicrx/internal/core/entity"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/registers/stock"
)

// --- Request DTOs ---

// CreateStockRequest registers a batch by hand (opening inventory, donations).
type CreateStockRequest struct {
	MedicineName string      `json:"medicineName" binding:"required"`
	BatchNo      string      `json:"batchNo"`
	Category     string      `json:"category"`
	OpeningStock int64       `json:"openingStock" binding:"gte=0"`
	MinimumStock int64       `json:"minimumStock" binding:"gte=0"`
	UnitPrice    types.Money `json:"unitPrice"`
	MRP          types.Money `json:"mrp"`
	ExpiryDate   string      `json:"expiryDate"`
	Supplier     string      `json:"supplier"`
}

// ToInput converts the request to the service input.
func (r *CreateStockRequest) ToInput() stock.CreateInput {
	return stock.CreateInput{
		MedicineName: r.MedicineName,
		BatchNo:      r.BatchNo,
		Category:     stock.ParseCategory(r.Category),
		OpeningStock: r.OpeningStock,
		MinimumStock: r.MinimumStock,
		UnitPrice:    r.UnitPrice,
		MRP:          r.MRP,
		ExpiryDate:   stock.Expiry(r.ExpiryDate),
		Supplier:     r.Supplier,
	}
}

// AdjustStockRequest is a manual correction of one batch.
type AdjustStockRequest struct {
	Delta  int64  `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// StockListRequest holds the batch list filters.
type StockListRequest struct {
	Name               string `form:"name"`
	InStock            bool   `form:"inStock"`
	LowStock           bool   `form:"lowStock"`
	ExpiringWithinDays *int   `form:"expiringWithinDays" binding:"omitempty,min=0"`
	Limit              int    `form:"limit" binding:"omitempty,min=0,max=500"`
	Offset             int    `form:"offset" binding:"omitempty,min=0"`
}

// ToQuery converts the request to a stock query evaluated at now.
func (r *StockListRequest) ToQuery(now time.Time) stock.Query {
	limit := r.Limit
	if limit == 0 {
		limit = 100
	}
	return stock.Query{
		ListFilter: stock.ListFilter{
			NameContains: r.Name,
			InStockOnly:  r.InStock,
			LowStockOnly: r.LowStock,
			Limit:        limit,
			Offset:       r.Offset,
		},
		ExpiringWithinDays: r.ExpiringWithinDays,
		Now:                now,
	}
}

// --- Response DTOs ---

// StockBatchResponse represents one batch in API responses.
type StockBatchResponse struct {
	ID           string      `json:"id"`
	MedicineName string      `json:"medicineName"`
	BatchNo      string      `json:"batchNo"`
	Category     string      `json:"category"`
	CurrentStock int64       `json:"currentStock"`
	MinimumStock int64       `json:"minimumStock"`
	LowStock     bool        `json:"lowStock"`
	UnitPrice    types.Money `json:"unitPrice"`
	MRP          types.Money `json:"mrp"`
	ExpiryDate   string      `json:"expiryDate"`
	Supplier     string      `json:"supplier,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// FromStockBatch converts a batch to response DTO.
func FromStockBatch(b *stock.Batch) StockBatchResponse {
	return StockBatchResponse{
		ID:           b.ID.String(),
		MedicineName: b.MedicineName,
		BatchNo:      b.BatchNo,
		Category:     string(b.Category),
		CurrentStock: b.CurrentStock,
		MinimumStock: b.MinimumStock,
		LowStock:     b.IsLowStock(),
		UnitPrice:    b.UnitPrice,
		MRP:          b.MRP,
		ExpiryDate:   b.ExpiryDate.String(),
		Supplier:     b.Supplier,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

// FromStockBatches converts a slice of batches.
func FromStockBatches(batches []*stock.Batch) []StockBatchResponse {
	out := make([]StockBatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, FromStockBatch(b))
	}
	return out
}

// StockMovementResponse represents a journal entry in API responses.
type StockMovementResponse struct {
	LineID        string    `json:"lineId"`
	StockItemID   string    `json:"stockItemId"`
	RecordType    string    `json:"recordType"`
	RecorderType  string    `json:"recorderType"`
	RecorderID    string    `json:"recorderId,omitempty"`
	RecorderRef   string    `json:"recorderRef,omitempty"`
	Delta         int64     `json:"delta"`
	QuantityAfter int64     `json:"quantityAfter"`
	Anomaly       bool      `json:"anomaly"`
	OperatorID    string    `json:"operatorId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// FromStockMovement converts entity to response DTO.
func FromStockMovement(m entity.StockMovement) StockMovementResponse {
	resp := StockMovementResponse{
		LineID:        m.LineID.String(),
		StockItemID:   m.StockItemID.String(),
		RecordType:    string(m.RecordType),
		RecorderType:  m.Recorder.Type,
		RecorderRef:   m.Recorder.Ref,
		Delta:         m.Delta,
		QuantityAfter: m.QuantityAfter,
		Anomaly:       m.Anomaly,
		OperatorID:    m.OperatorID,
		CreatedAt:     m.CreatedAt,
	}
	// Manual adjustments have no recorder document.
	if !id.IsNil(m.Recorder.ID) {
		resp.RecorderID = m.Recorder.ID.String()
	}
	return resp
}
