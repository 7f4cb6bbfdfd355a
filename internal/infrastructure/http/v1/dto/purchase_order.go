package dto

import (
	"time"

	"clinicrx/internal/core/apperror"
	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/documents/purchase_order"
	"clinicrx/internal/domain/registers/stock"
)

// --- Request DTOs ---

// CreatePurchaseOrderRequest represents a request to create a purchase order.
type CreatePurchaseOrderRequest struct {
	Number    string                     `json:"number,omitempty"`
	Supplier  string                     `json:"supplier" binding:"required"`
	OrderDate string                     `json:"orderDate"`
	Comment   string                     `json:"comment,omitempty"`
	Items     []PurchaseOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// PurchaseOrderItemRequest is one ordered line.
type PurchaseOrderItemRequest struct {
	StockItemID string      `json:"stockItemId" binding:"required"`
	Quantity    int64       `json:"quantity" binding:"required,gt=0"`
	UnitPrice   types.Money `json:"unitPrice"`
	MRP         types.Money `json:"mrp"`
	BatchNo     string      `json:"batchNo,omitempty"`
	ExpiryDate  string      `json:"expiryDate,omitempty"`
}

// ToInput converts the request to the service input.
func (r *CreatePurchaseOrderRequest) ToInput() (purchase_order.CreateInput, error) {
	orderDate, err := ParseDate("orderDate", r.OrderDate)
	if err != nil {
		return purchase_order.CreateInput{}, err
	}

	in := purchase_order.CreateInput{
		Number:    r.Number,
		Supplier:  r.Supplier,
		OrderDate: orderDate,
		Comment:   r.Comment,
		Items:     make([]purchase_order.Item, 0, len(r.Items)),
	}
	for i, it := range r.Items {
		itemID, err := id.Parse(it.StockItemID)
		if err != nil {
			return purchase_order.CreateInput{}, apperror.NewValidation("invalid stockItemId").
				WithDetail("field", "items").
				WithDetail("index", i)
		}
		in.Items = append(in.Items, purchase_order.Item{
			StockItemID:     itemID,
			OrderedQuantity: it.Quantity,
			UnitPrice:       it.UnitPrice,
			MRP:             it.MRP,
			BatchNo:         it.BatchNo,
			ExpiryDate:      stock.Expiry(it.ExpiryDate),
		})
	}
	return in, nil
}

// ReceiveRequest is the GRN form.
type ReceiveRequest struct {
	GRNNumber string               `json:"grnNumber,omitempty"`
	GRNDate   string               `json:"grnDate,omitempty"`
	Lines     []ReceiveLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ReceiveLineRequest is what arrived for one order line. Blank fields fall
// back to the order line or the stock record.
type ReceiveLineRequest struct {
	LineNo           int         `json:"lineNo" binding:"required,min=1"`
	ReceivedQuantity int64       `json:"receivedQuantity" binding:"gte=0"`
	BatchNo          string      `json:"batchNo,omitempty"`
	ExpiryDate       string      `json:"expiryDate,omitempty"`
	CostPrice        types.Money `json:"costPrice"`
	MRP              types.Money `json:"mrp"`
}

// ToGRN converts the request to the receiving input.
func (r *ReceiveRequest) ToGRN() (purchase_order.GRN, error) {
	grnDate, err := ParseDate("grnDate", r.GRNDate)
	if err != nil {
		return purchase_order.GRN{}, err
	}

	grn := purchase_order.GRN{
		GRNNumber: r.GRNNumber,
		GRNDate:   grnDate,
		Lines:     make([]purchase_order.GRNLine, 0, len(r.Lines)),
	}
	for _, l := range r.Lines {
		grn.Lines = append(grn.Lines, purchase_order.GRNLine{
			LineNo:           l.LineNo,
			ReceivedQuantity: l.ReceivedQuantity,
			BatchNo:          l.BatchNo,
			ExpiryDate:       stock.Expiry(l.ExpiryDate),
			CostPrice:        l.CostPrice,
			MRP:              l.MRP,
		})
	}
	return grn, nil
}

// PurchaseOrderListRequest holds purchase order list filters.
type PurchaseOrderListRequest struct {
	ListRequest
	Status   string `form:"status" binding:"omitempty,oneof=Pending Received"`
	Supplier string `form:"supplier"`
	DateFrom string `form:"dateFrom"`
	DateTo   string `form:"dateTo"`
}

// ToFilter converts the request to the repository filter.
func (r *PurchaseOrderListRequest) ToFilter() (purchase_order.ListFilter, error) {
	f := purchase_order.ListFilter{
		ListFilter: r.ListRequest.ToFilter(),
		Supplier:   r.Supplier,
	}
	if r.Status != "" {
		status := purchase_order.Status(r.Status)
		f.Status = &status
	}
	from, err := ParseDate("dateFrom", r.DateFrom)
	if err != nil {
		return f, err
	}
	if !from.IsZero() {
		f.DateFrom = &from
	}
	to, err := ParseDate("dateTo", r.DateTo)
	if err != nil {
		return f, err
	}
	if !to.IsZero() {
		f.DateTo = &to
	}
	return f, nil
}

// --- Response DTOs ---

// PurchaseOrderResponse represents a purchase order in API responses.
type PurchaseOrderResponse struct {
	ID          string                      `json:"id"`
	Number      string                      `json:"number"`
	OrderDate   types.Date                  `json:"orderDate"`
	Supplier    string                      `json:"supplier"`
	Status      string                      `json:"status"`
	Comment     string                      `json:"comment,omitempty"`
	GRNNumber   string                      `json:"grnNumber,omitempty"`
	GRNDate     *types.Date                 `json:"grnDate,omitempty"`
	ReceivedAt  *time.Time                  `json:"receivedAt,omitempty"`
	TotalAmount types.Money                 `json:"totalAmount"`
	Items       []PurchaseOrderItemResponse `json:"items,omitempty"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
}

// PurchaseOrderItemResponse is an order line with what was received for it.
type PurchaseOrderItemResponse struct {
	LineNo          int                          `json:"lineNo"`
	StockItemID     string                       `json:"stockItemId"`
	MedicineName    string                       `json:"medicineName"`
	OrderedQuantity int64                        `json:"orderedQuantity"`
	UnitPrice       types.Money                  `json:"unitPrice"`
	MRP             types.Money                  `json:"mrp"`
	BatchNo         string                       `json:"batchNo,omitempty"`
	ExpiryDate      string                       `json:"expiryDate,omitempty"`
	Received        *purchase_order.ReceivedLine `json:"received,omitempty"`
}

// FromPurchaseOrder converts a purchase order to response DTO.
func FromPurchaseOrder(po *purchase_order.PurchaseOrder) PurchaseOrderResponse {
	resp := PurchaseOrderResponse{
		ID:          po.ID.String(),
		Number:      po.Number,
		OrderDate:   po.Date,
		Supplier:    po.Supplier,
		Status:      string(po.Status),
		Comment:     po.Comment,
		GRNNumber:   po.GRNNumber,
		ReceivedAt:  po.ReceivedAt,
		TotalAmount: po.TotalAmount(),
		CreatedAt:   po.CreatedAt,
		UpdatedAt:   po.UpdatedAt,
	}
	if !po.GRNDate.IsZero() {
		d := po.GRNDate
		resp.GRNDate = &d
	}

	if len(po.Items) > 0 {
		resp.Items = make([]PurchaseOrderItemResponse, 0, len(po.Items))
		for _, it := range po.Items {
			resp.Items = append(resp.Items, PurchaseOrderItemResponse{
				LineNo:          it.LineNo,
				StockItemID:     it.StockItemID.String(),
				MedicineName:    it.MedicineName,
				OrderedQuantity: it.OrderedQuantity,
				UnitPrice:       it.UnitPrice,
				MRP:             it.MRP,
				BatchNo:         it.BatchNo,
				ExpiryDate:      it.ExpiryDate.String(),
				Received:        it.Received,
			})
		}
	}
	return resp
}
