package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"clinicrx/internal/infrastructure/storage/postgres"
)

// Pinger is a dependency whose reachability decides readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	appName string
	checks  map[string]Pinger
	pool    *postgres.Pool
}

// NewHealthHandler creates a new health handler. pool may be nil when running
// on the in-memory store.
func NewHealthHandler(appName string, pool *postgres.Pool, checks map[string]Pinger) *HealthHandler {
	if checks == nil {
		checks = make(map[string]Pinger)
	}
	if pool != nil {
		checks["database"] = pool
	}
	return &HealthHandler{appName: appName, checks: checks, pool: pool}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = "unhealthy: " + err.Error()
			continue
		}
		results[name] = "healthy"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "error"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": results,
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	body := gin.H{
		"app":     h.appName,
		"version": "0.1.0",
		"storage": "memory",
	}
	if h.pool != nil {
		body["storage"] = "postgres"
		body["database"] = postgres.GetPoolStats(h.pool.Pool)
	}
	c.JSON(http.StatusOK, body)
}
