package handlers

import (
	"github.com/gin-gonic/gin"

	"clinicrx/internal/domain/audit"
	"clinicrx/internal/domain/documents/purchase_order"
	"clinicrx/internal/infrastructure/http/v1/dto"
)

// PurchaseOrderHandler handles purchase orders and goods receipt.
type PurchaseOrderHandler struct {
	*BaseHandler
	service  *purchase_order.Service
	receiver *purchase_order.Receiver
	history  audit.History
}

// NewPurchaseOrderHandler creates a new purchase order handler. history may be nil.
func NewPurchaseOrderHandler(base *BaseHandler, service *purchase_order.Service, receiver *purchase_order.Receiver, history audit.History) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{
		BaseHandler: base,
		service:     service,
		receiver:    receiver,
		history:     history,
	}
}

// Create handles POST /purchase-orders
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	var req dto.CreatePurchaseOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	po, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromPurchaseOrder(po))
}

// List handles GET /purchase-orders
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	var req dto.PurchaseOrderListRequest
	if !h.BindQuery(c, &req) {
		return
	}

	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.MapList(res, dto.FromPurchaseOrder))
}

// Get handles GET /purchase-orders/:id
func (h *PurchaseOrderHandler) Get(c *gin.Context) {
	poID, ok := h.ParseID(c)
	if !ok {
		return
	}

	po, err := h.service.GetByID(c.Request.Context(), poID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPurchaseOrder(po))
}

// Receive handles POST /purchase-orders/:id/receive
// A second submission for a received order answers 409 ALREADY_PROCESSED.
func (h *PurchaseOrderHandler) Receive(c *gin.Context) {
	poID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.ReceiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	grn, err := req.ToGRN()
	if err != nil {
		h.Error(c, err)
		return
	}

	receipt, err := h.receiver.Receive(c.Request.Context(), poID, grn)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, receipt)
}

// History handles GET /purchase-orders/:id/history
func (h *PurchaseOrderHandler) History(c *gin.Context) {
	poID, ok := h.ParseID(c)
	if !ok {
		return
	}
	if h.history == nil {
		h.OK(c, gin.H{"items": []audit.Entry{}})
		return
	}

	entries, err := h.history.History(c.Request.Context(), purchase_order.DocumentType, poID, h.ParseIntQuery(c, "limit", 50))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": entries})
}
