package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/fishlens/internal/logger"
	"github.com/timmy/fishlens/internal/service"
	"github.com/timmy/fishlens/internal/source"
)

// AdminHandler handles admin operations.
type AdminHandler struct {
	ingestService *service.IngestService
	sources       map[string]source.Source

	// Ingest job state
	mu            sync.RWMutex
	isRunning     bool
	currentStats  *service.IngestStats
	lastRunTime   time.Time
	lastRunStatus string
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - ingestService: ingest service instance.
//   - sources: source adapters keyed by name.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(ingestService *service.IngestService, sources map[string]source.Source) *AdminHandler {
	return &AdminHandler{
		ingestService: ingestService,
		sources:       sources,
	}
}

// IngestRequest represents the ingest API request.
type IngestRequest struct {
	Source        string `json:"source" binding:"required"`
	Limit         int    `json:"limit" binding:"min=0,max=10000"`
	ContributorID uint   `json:"contributor_id" binding:"required"`
	AutoApprove   bool   `json:"auto_approve"`
	ReviewerID    uint   `json:"reviewer_id"`
	Feedback      string `json:"feedback" binding:"max=255"`
}

// IngestStatusResponse represents the ingest status.
type IngestStatusResponse struct {
	IsRunning     bool                 `json:"is_running"`
	LastRunTime   string               `json:"last_run_time,omitempty"`
	LastRunStatus string               `json:"last_run_status,omitempty"`
	CurrentStats  *service.IngestStats `json:"current_stats,omitempty"`
}

// TriggerIngest handles POST /api/v1/admin/ingest. The run is synchronous;
// a second request while one is in flight gets 409.
func (h *AdminHandler) TriggerIngest(c *gin.Context) {
	ctx := c.Request.Context()

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid ingest request: client_ip=%s, error=%v", c.ClientIP(), err)
		writeError(c, badRequest("invalid request: %v", err))
		return
	}

	src, ok := h.sources[req.Source]
	if !ok {
		logger.CtxWarn(ctx, "Unknown source requested: source=%s, client_ip=%s", req.Source, c.ClientIP())
		writeError(c, badRequest("unknown source %q", req.Source))
		return
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Ingest request rejected: already running, source=%s", req.Source)
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "ingest is already running"})
		return
	}
	h.isRunning = true
	h.currentStats = nil
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting ingest: source=%s, limit=%d, auto_approve=%v",
		req.Source, req.Limit, req.AutoApprove)

	// The run outlives a dropped client connection.
	startTime := time.Now()
	stats, err := h.ingestService.IngestFromSource(context.WithoutCancel(ctx), src, req.Limit, &service.IngestOptions{
		ContributorID: req.ContributorID,
		AutoApprove:   req.AutoApprove,
		ReviewerID:    req.ReviewerID,
		Feedback:      req.Feedback,
	})
	duration := time.Since(startTime)

	h.mu.Lock()
	h.isRunning = false
	h.currentStats = stats
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		logger.With(logger.Fields{
			logger.FieldDurationMs: duration.Milliseconds(),
		}).Error(ctx, "Ingest failed: source=%s, error=%v", req.Source, err)
		writeError(c, err)
		return
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: duration.Milliseconds(),
		logger.FieldCount:      stats.ProcessedItems,
	}).Info(ctx, "Ingest completed: source=%s, total=%d, approved=%d, skipped=%d, failed=%d",
		req.Source, stats.TotalItems, stats.ApprovedItems, stats.SkippedItems, stats.FailedItems)

	writeOK(c, http.StatusOK, "ingest completed", gin.H{"stats": stats})
}

// GetIngestStatus handles GET /api/v1/admin/ingest/status.
func (h *AdminHandler) GetIngestStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := IngestStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		CurrentStats:  h.currentStats,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}
