package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock register.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
	now     func() time.Time
}

// NewStockHandler creates a new stock register handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
		now:         time.Now,
	}
}

// Create handles POST /stock
func (h *StockHandler) Create(c *gin.Context) {
	var req dto.CreateStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	b, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromStockBatch(b))
}

// List handles GET /stock
func (h *StockHandler) List(c *gin.Context) {
	var req dto.StockListRequest
	if !h.BindQuery(c, &req) {
		return
	}

	batches, err := h.service.List(c.Request.Context(), req.ToQuery(h.now()))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromStockBatches(batches)})
}

// Get handles GET /stock/:id
func (h *StockHandler) Get(c *gin.Context) {
	itemID, ok := h.ParseID(c)
	if !ok {
		return
	}

	b, err := h.service.Get(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockBatch(b))
}

// Adjust handles POST /stock/:id/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	itemID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	b, err := h.service.Adjust(c.Request.Context(), itemID, req.Delta, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockBatch(b))
}

// Movements handles GET /stock/:id/movements
func (h *StockHandler) Movements(c *gin.Context) {
	itemID, ok := h.ParseID(c)
	if !ok {
		return
	}

	movements, err := h.service.Movements(c.Request.Context(), itemID, h.ParseIntQuery(c, "limit", 100))
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockMovementResponse, 0, len(movements))
	for _, m := range movements {
		items = append(items, dto.FromStockMovement(m))
	}
	h.OK(c, gin.H{"items": items})
}

// Select handles GET /stock/select?medicine=
// It shows which batch FIFO would dispense from without changing stock.
func (h *StockHandler) Select(c *gin.Context) {
	b, err := h.service.SelectBatch(c.Request.Context(), c.Query("medicine"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockBatch(b))
}
