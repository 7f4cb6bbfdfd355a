// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"clinicrx/internal/core/idempotency"
	"clinicrx/internal/domain/audit"
	"clinicrx/internal/domain/documents/invoice"
	"clinicrx/internal/domain/documents/purchase_order"
	"clinicrx/internal/domain/registers/stock"
	"clinicrx/internal/domain/reports"
	"clinicrx/internal/infrastructure/http/v1/handlers"
	"clinicrx/internal/infrastructure/http/v1/middleware"
	"clinicrx/internal/infrastructure/storage/postgres"
	"clinicrx/pkg/logger"
)

// RouterConfig holds the services the API exposes. Storage wiring happens in
// cmd/server so the same router serves the postgres and in-memory drivers.
type RouterConfig struct {
	AppName string

	// Logger for request logging
	Logger *logger.Logger

	// Pool is nil on the in-memory driver.
	Pool *postgres.Pool
	// HealthChecks are extra readiness probes (redis).
	HealthChecks map[string]handlers.Pinger

	Stock          *stock.Service
	PurchaseOrders *purchase_order.Service
	Receiver       *purchase_order.Receiver
	Invoices       *invoice.Service
	Reports        *reports.Service
	AuditHistory   audit.History

	// IdempotencyEnabled enables idempotency middleware
	IdempotencyEnabled bool
	IdempotencyStore   idempotency.Store

	// Debug switches gin to debug mode.
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!). Recovery sits inside ErrorHandler
	// so a recovered panic is still rendered.
	router.Use(middleware.Trace())
	router.Use(middleware.Operator())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.AppName, cfg.Pool, cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	api := router.Group("/api/v1")
	if cfg.IdempotencyEnabled && cfg.IdempotencyStore != nil {
		api.Use(middleware.Idempotency(cfg.IdempotencyStore))
	}

	base := handlers.NewBaseHandler()
	registerStockRoutes(api, base, cfg)
	registerDocumentRoutes(api, base, cfg)
	registerDayReportRoutes(api, base, cfg)

	return router
}

// registerStockRoutes registers stock register endpoints.
func registerStockRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewStockHandler(base, cfg.Stock)

	g := rg.Group("/stock")
	g.POST("", h.Create)
	g.GET("", h.List)
	// static segment wins over :id in gin's router
	g.GET("/select", h.Select)
	g.GET("/:id", h.Get)
	g.POST("/:id/adjust", h.Adjust)
	g.GET("/:id/movements", h.Movements)
}

// registerDocumentRoutes registers purchase order and invoice endpoints.
func registerDocumentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	// --- PURCHASE ORDERS ---
	{
		h := handlers.NewPurchaseOrderHandler(base, cfg.PurchaseOrders, cfg.Receiver, cfg.AuditHistory)
		g := rg.Group("/purchase-orders")
		RegisterDocumentRoutes(g, h)
		g.POST("/:id/receive", h.Receive)
		g.GET("/:id/history", h.History)
	}

	// --- INVOICES ---
	{
		h := handlers.NewInvoiceHandler(base, cfg.Invoices)
		RegisterDocumentRoutes(rg.Group("/invoices"), h)
	}
}

// registerDayReportRoutes registers day report endpoints.
func registerDayReportRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewReportsHandler(base, cfg.Reports)

	g := rg.Group("/day-reports/:date")
	g.GET("/opening", h.GetOpening)
	g.GET("/closing", h.GetClosing)
	g.GET("/stock", h.GetDayStock)
	g.POST("/openings", h.CaptureOpenings)
	g.GET("/cash", h.GetCash)
	g.PUT("/cash", h.PutCash)
	g.GET("/reconciliation", h.GetReconciliation)
}
