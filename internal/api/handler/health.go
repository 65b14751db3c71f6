package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks a dependency, such as the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyChecker reports whether the vector index has finished populating.
type ReadyChecker interface {
	Ready() bool
	Len() int
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db    Pinger
	index ReadyChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, index ReadyChecker) *HealthHandler {
	return &HealthHandler{db: db, index: index}
}

// Health reports liveness. It never touches dependencies.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready returns 503 until the index is populated and the database answers.
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.index.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "loading",
			"index":  h.index.Len(),
		})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "database unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"index":  h.index.Len(),
	})
}
