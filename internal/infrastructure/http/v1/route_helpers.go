package v1

import (
	"github.com/gin-gonic/gin"
)

// DocumentRouteHandler defines the routes every document handler serves.
type DocumentRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
}

// RegisterDocumentRoutes registers the standard list/create/get routes for a document.
// Document specific actions (receive, history) are added by the caller on the same group.
//
// Usage:
//
//	handler := handlers.NewInvoiceHandler(base, cfg.Invoices)
//	RegisterDocumentRoutes(api.Group("/invoices"), handler)
func RegisterDocumentRoutes(group *gin.RouterGroup, handler DocumentRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
}
