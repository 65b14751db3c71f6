package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/fishlens/internal/service"
)

// SearchHandler handles search-related endpoints.
type SearchHandler struct {
	searchService *service.SearchService
	maxBytes      int64
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - searchService: search service instance.
//   - maxBytes: upload limit for query images.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(searchService *service.SearchService, maxBytes int64) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		maxBytes:      maxBytes,
	}
}

// ByImage handles POST /api/v1/search/image (multipart: image, count,
// requester_id).
func (h *SearchHandler) ByImage(c *gin.Context) {
	requesterID, err := parseID(c.PostForm("requester_id"), "requester_id")
	if err != nil {
		writeError(c, err)
		return
	}
	count, err := parseOptionalInt(c.PostForm("count"), "count", h.searchService.DefaultCount())
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := readUpload(c, "image", h.maxBytes)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.searchService.QueryByImage(c.Request.Context(), data, count, requesterID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeSearch(c, result)
}

// ByName handles GET /api/v1/search/name?name=&count=&requester_id=.
func (h *SearchHandler) ByName(c *gin.Context) {
	count, requesterID, ok := h.queryParams(c)
	if !ok {
		return
	}
	result, err := h.searchService.QueryByName(c.Request.Context(), c.Query("name"), count, requesterID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeSearch(c, result)
}

// ByTag handles GET /api/v1/search/tag?tag=&count=&requester_id=.
func (h *SearchHandler) ByTag(c *gin.Context) {
	count, requesterID, ok := h.queryParams(c)
	if !ok {
		return
	}
	result, err := h.searchService.QueryByTag(c.Request.Context(), c.Query("tag"), count, requesterID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeSearch(c, result)
}

// History handles GET /api/v1/search/history?requester_id=&limit=.
func (h *SearchHandler) History(c *gin.Context) {
	requesterID, err := parseID(c.Query("requester_id"), "requester_id")
	if err != nil {
		writeError(c, err)
		return
	}
	limit, err := parseOptionalInt(c.Query("limit"), "limit", 0)
	if err != nil {
		writeError(c, err)
		return
	}
	records, err := h.searchService.History(c.Request.Context(), requesterID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "", gin.H{"results": records, "total": len(records)})
}

// GetStats handles GET /api/v1/stats.
func (h *SearchHandler) GetStats(c *gin.Context) {
	stats, err := h.searchService.GetStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "", gin.H{"stats": stats})
}

func (h *SearchHandler) queryParams(c *gin.Context) (count int, requesterID uint, ok bool) {
	requesterID, err := parseID(c.Query("requester_id"), "requester_id")
	if err != nil {
		writeError(c, err)
		return 0, 0, false
	}
	count, err = parseOptionalInt(c.Query("count"), "count", h.searchService.DefaultCount())
	if err != nil {
		writeError(c, err)
		return 0, 0, false
	}
	return count, requesterID, true
}

func writeSearch(c *gin.Context, result *service.SearchResponse) {
	message := "matches found"
	if result.Total == 0 {
		message = "no matches"
	}
	writeOK(c, http.StatusOK, message, gin.H{
		"results": result.Results,
		"total":   result.Total,
		"method":  result.Method,
	})
}
