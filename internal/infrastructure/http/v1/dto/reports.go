package dto

import (
	"clinicrx/internal/core/types"
	"clinicrx/internal/domain/reports"
)

// --- Day Stock ---

// OpeningResponse is the frozen opening stock of one medicine on one day.
type OpeningResponse struct {
	Date         types.Date `json:"date"`
	MedicineName string     `json:"medicineName"`
	Opening      int64      `json:"opening"`
}

// ClosingResponse is Opening - Sold + Received for one medicine on one day.
type ClosingResponse struct {
	Date         types.Date `json:"date"`
	MedicineName string     `json:"medicineName"`
	Opening      int64      `json:"opening"`
	Sold         int64      `json:"sold"`
	Received     int64      `json:"received"`
	Closing      int64      `json:"closing"`
}

// FromClosing converts domain closing to response DTO.
func FromClosing(c reports.Closing) ClosingResponse {
	return ClosingResponse{
		Date:         c.Date,
		MedicineName: c.MedicineName,
		Opening:      c.Opening,
		Sold:         c.Sold,
		Received:     c.Received,
		Closing:      c.Closing,
	}
}

// DayStockResponse lists every medicine's movement on one day.
type DayStockResponse struct {
	Date  types.Date        `json:"date"`
	Items []ClosingResponse `json:"items"`
}

// FromDayStock converts a day's closings to response DTO.
func FromDayStock(date types.Date, cs []reports.Closing) DayStockResponse {
	resp := DayStockResponse{Date: date, Items: make([]ClosingResponse, 0, len(cs))}
	for _, c := range cs {
		resp.Items = append(resp.Items, FromClosing(c))
	}
	return resp
}

// CaptureResponse reports how many openings a capture run froze.
type CaptureResponse struct {
	Date    types.Date `json:"date"`
	Created int        `json:"created"`
}

// --- Cash ---

// CashCountRequest is the manually entered cash side of a day.
type CashCountRequest struct {
	Denominations     map[string]int64 `json:"denominations"`
	BankDeposits      types.Money      `json:"bankDeposits"`
	DigitalPayments   types.Money      `json:"digitalPayments"`
	FeesCollected     types.Money      `json:"feesCollected"`
	OpeningCashInHand *types.Money     `json:"openingCashInHand,omitempty"`
	Notes             string           `json:"notes,omitempty"`
}

// ToCashCount converts the request to the domain value.
func (r *CashCountRequest) ToCashCount() reports.CashCount {
	denoms := r.Denominations
	if denoms == nil {
		denoms = map[string]int64{}
	}
	return reports.CashCount{
		Denominations:     denoms,
		BankDeposits:      r.BankDeposits,
		DigitalPayments:   r.DigitalPayments,
		FeesCollected:     r.FeesCollected,
		OpeningCashInHand: r.OpeningCashInHand,
		Notes:             r.Notes,
	}
}
