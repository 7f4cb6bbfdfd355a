package handlers

import (
	"github.com/gin-gonic/gin"

	"clinicrx/internal/domain/reports"
	"clinicrx/internal/infrastructure/http/v1/dto"
)

// ReportsHandler handles the day report: stock snapshot and cash reconciliation.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// GetOpening handles GET /day-reports/:date/opening?medicine=
// The first read of a day freezes the opening.
func (h *ReportsHandler) GetOpening(c *gin.Context) {
	date, ok := h.ParseDateParam(c)
	if !ok {
		return
	}
	medicine := c.Query("medicine")

	qty, err := h.service.GetOrCreateOpening(c.Request.Context(), medicine, date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.OpeningResponse{Date: date, MedicineName: medicine, Opening: qty})
}

// GetClosing handles GET /day-reports/:date/closing?medicine=
func (h *ReportsHandler) GetClosing(c *gin.Context) {
	date, ok := h.ParseDateParam(c)
	if !ok {
		return
	}

	closing, err := h.service.ComputeClosing(c.Request.Context(), c.Query("medicine"), date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromClosing(*closing))
}

// GetDayStock handles GET /day-reports/:date/stock
func (h *ReportsHandler) GetDayStock(c *gin.Context) {
	date, ok := h.ParseDateParam(c)
	if !ok {
		return
	}

	closings, err := h.service.DayStock(c.Request.Context(), date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDayStock(date, closings))
}

// CaptureOpenings handles POST /day-reports/:date/openings
func (h *ReportsHandler) CaptureOpenings(c *gin.Context) {
	date, ok := h.ParseDateParam(c)
	if !ok {
		return
	}

	n, err := h.service.CaptureOpenings(c.Request.Context(), date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CaptureResponse{Date: date, Created: n})
}

// GetCash handles GET /day-reports/:date/cash
func (h *ReportsHandler) GetCash(c *gin.Context) {
	date, ok := h.ParseDateParam(c)
	if !ok {
		return
	}

	cash, err := h.service.GetCashCount(c.Request.Context(), date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cash)
}

// PutCash handles PUT /day-reports/:date/cash
// The response is the reconciliation after the save.
func (h *ReportsHandler) PutCash(c *gin.Context) {
	date, ok := h.ParseDateParam(c)
	if !ok {
		return
	}

	var req dto.CashCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if err := h.service.SaveCashCount(ctx, date, req.ToCashCount()); err != nil {
		h.Error(c, err)
		return
	}

	rec, err := h.service.ReconcileCash(ctx, date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}

// GetReconciliation handles GET /day-reports/:date/reconciliation
func (h *ReportsHandler) GetReconciliation(c *gin.Context) {
	date, ok := h.ParseDateParam(c)
	if !ok {
		return
	}

	rec, err := h.service.ReconcileCash(c.Request.Context(), date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rec)
}
