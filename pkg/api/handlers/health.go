// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/response"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/memory"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/version"
)

// HealthHandler handles health and status endpoints.
type HealthHandler struct {
	engine    *memory.Engine
	storeType string
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(engine *memory.Engine, storeType string) *HealthHandler {
	return &HealthHandler{
		engine:    engine,
		storeType: storeType,
		startTime: time.Now(),
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe). The service is
// ready when the store answers a snapshot request.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.engine.UserCounts(r.Context()); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]bool{
			"ready": false,
		})
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{
		"ready": true,
	})
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	var users, items int
	if counts, err := h.engine.UserCounts(r.Context()); err == nil {
		users = len(counts)
		for _, n := range counts {
			items += n
		}
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        version.Version,
		"store":          h.storeType,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"users":          users,
		"items":          items,
	})
}

// Version handles the /version endpoint.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, version.Info())
}
