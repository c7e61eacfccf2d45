// Package handlers implements the gateway control-plane endpoints.
package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/unifiedui/chat-gateway/internal/api/dto"
	"github.com/unifiedui/chat-gateway/internal/core/cache"
	"github.com/unifiedui/chat-gateway/internal/core/docdb"
)

const probeTimeout = 3 * time.Second

// Counter reports a number of registered items.
type Counter interface {
	Len() int
}

type probe struct {
	name string
	ping func(context.Context) error
}

// HealthHandler serves the health, readiness and liveness probes.
type HealthHandler struct {
	probes   []probe
	sessions Counter
	commands Counter
}

// NewHealthHandler creates a new HealthHandler. The counters may be nil.
func NewHealthHandler(cacheClient cache.Cache, docDBClient docdb.Client, sessions, commands Counter) *HealthHandler {
	return &HealthHandler{
		probes: []probe{
			{name: "cache", ping: cacheClient.Ping},
			{name: "docdb", ping: docDBClient.Ping},
		},
		sessions: sessions,
		commands: commands,
	}
}

// Health handles the /health endpoint.
// @Summary Health check
// @Description Returns the overall health status, component statuses and registry sizes
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResponse "Service healthy"
// @Failure 503 {object} dto.HealthResponse "Service unhealthy"
// @Router /api/v1/gateway/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	var (
		mu         sync.Mutex
		components = make(map[string]string, len(h.probes))
		healthy    = true
	)

	var g errgroup.Group
	for _, p := range h.probes {
		g.Go(func() error {
			status := "healthy"
			if err := ping(c.Request.Context(), p); err != nil {
				status = "unhealthy"
			}
			mu.Lock()
			components[p.name] = status
			healthy = healthy && status == "healthy"
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp := dto.HealthResponse{Status: "healthy", Components: components}
	code := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Len()
	}
	if h.commands != nil {
		resp.Handlers = h.commands.Len()
	}
	c.JSON(code, resp)
}

// Ready handles the /ready endpoint.
// @Summary Readiness check
// @Description Returns 200 once the cache and document database answer
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string "Service ready"
// @Failure 503 {object} map[string]string "Service not ready"
// @Router /api/v1/gateway/ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	for _, p := range h.probes {
		if err := ping(c.Request.Context(), p); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": p.name + " unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Live handles the /live endpoint.
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string "Service alive"
// @Router /api/v1/gateway/live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func ping(ctx context.Context, p probe) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return p.ping(ctx)
}
