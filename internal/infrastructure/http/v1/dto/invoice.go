package dto

import (
	"time"

	"clinicrx/internal/core/id"
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/documents/invoice"
	"clinicrx/internal/domain/registers/stock"
)

// --- Request DTOs ---

// CreateInvoiceRequest represents a dispensing bill.
type CreateInvoiceRequest struct {
	Number      string               `json:"number,omitempty"`
	Date        string               `json:"date"`
	PatientRef  string               `json:"patientRef,omitempty"`
	PaymentMode string               `json:"paymentMode" binding:"omitempty,oneof=cash digital"`
	Comment     string               `json:"comment,omitempty"`
	Lines       []InvoiceLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// InvoiceLineRequest is one dispensed item. StockItemID or BatchNo pin a
// batch; otherwise FIFO picks one.
type InvoiceLineRequest struct {
	MedicineName string      `json:"medicineName"`
	StockItemID  string      `json:"stockItemId,omitempty"`
	BatchNo      string      `json:"batchNo,omitempty"`
	Category     string      `json:"category,omitempty"`
	Quantity     int64       `json:"quantity" binding:"required,gt=0"`
	UnitPrice    types.Money `json:"unitPrice"`
}

// ToInput converts the request to the service input.
func (r *CreateInvoiceRequest) ToInput() (invoice.CreateInput, error) {
	date, err := ParseDate("date", r.Date)
	if err != nil {
		return invoice.CreateInput{}, err
	}

	in := invoice.CreateInput{
		Number:      r.Number,
		Date:        date,
		PatientRef:  r.PatientRef,
		PaymentMode: invoice.PaymentMode(r.PaymentMode),
		Comment:     r.Comment,
		Lines:       make([]invoice.Line, 0, len(r.Lines)),
	}
	for _, l := range r.Lines {
		itemID, err := ParseOptionalID("stockItemId", l.StockItemID)
		if err != nil {
			return invoice.CreateInput{}, err
		}
		line := invoice.Line{
			StockItemID:  itemID,
			MedicineName: l.MedicineName,
			BatchNo:      l.BatchNo,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
		}
		if l.Category != "" {
			line.Category = stock.ParseCategory(l.Category)
		}
		in.Lines = append(in.Lines, line)
	}
	return in, nil
}

// InvoiceListRequest holds invoice list filters.
type InvoiceListRequest struct {
	ListRequest
	Date        string `form:"date"`
	PaymentMode string `form:"paymentMode" binding:"omitempty,oneof=cash digital"`
}

// ToFilter converts the request to the repository filter.
func (r *InvoiceListRequest) ToFilter() (invoice.ListFilter, error) {
	f := invoice.ListFilter{ListFilter: r.ListRequest.ToFilter()}
	date, err := ParseDate("date", r.Date)
	if err != nil {
		return f, err
	}
	if !date.IsZero() {
		f.Date = &date
	}
	if r.PaymentMode != "" {
		mode := invoice.PaymentMode(r.PaymentMode)
		f.PaymentMode = &mode
	}
	return f, nil
}

// --- Response DTOs ---

// InvoiceResponse represents an invoice in API responses.
type InvoiceResponse struct {
	ID          string                `json:"id"`
	Number      string                `json:"number"`
	Date        types.Date            `json:"date"`
	PatientRef  string                `json:"patientRef,omitempty"`
	PaymentMode string                `json:"paymentMode"`
	Comment     string                `json:"comment,omitempty"`
	TotalAmount types.Money           `json:"totalAmount"`
	Lines       []InvoiceLineResponse `json:"lines,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// InvoiceLineResponse is a dispensed line with the batch it came from.
type InvoiceLineResponse struct {
	LineNo       int         `json:"lineNo"`
	StockItemID  string      `json:"stockItemId,omitempty"`
	MedicineName string      `json:"medicineName"`
	BatchNo      string      `json:"batchNo,omitempty"`
	Category     string      `json:"category"`
	Quantity     int64       `json:"quantity"`
	UnitPrice    types.Money `json:"unitPrice"`
	MRP          types.Money `json:"mrp"`
	Amount       types.Money `json:"amount"`
	AutoAssigned bool        `json:"autoAssigned"`
}

// FromInvoice converts an invoice to response DTO.
func FromInvoice(inv *invoice.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:          inv.ID.String(),
		Number:      inv.Number,
		Date:        inv.Date,
		PatientRef:  inv.PatientRef,
		PaymentMode: string(inv.PaymentMode),
		Comment:     inv.Comment,
		TotalAmount: inv.TotalAmount,
		CreatedAt:   inv.CreatedAt,
	}
	if len(inv.Lines) > 0 {
		resp.Lines = make([]InvoiceLineResponse, 0, len(inv.Lines))
		for _, l := range inv.Lines {
			resp.Lines = append(resp.Lines, InvoiceLineResponse{
				LineNo:       l.LineNo,
				StockItemID:  optionalID(l.StockItemID),
				MedicineName: l.MedicineName,
				BatchNo:      l.BatchNo,
				Category:     string(l.Category),
				Quantity:     l.Quantity,
				UnitPrice:    l.UnitPrice,
				MRP:          l.MRP,
				Amount:       l.Amount,
				AutoAssigned: l.AutoAssigned,
			})
		}
	}
	return resp
}

func optionalID(v *id.ID) string {
	if v == nil {
		return ""
	}
	return v.String()
}
