package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/fishlens/internal/domain"
	"github.com/timmy/fishlens/internal/service"
)

// SubmissionHandler serves the submission and moderation endpoints.
type SubmissionHandler struct {
	moderation *service.ModerationService
	maxBytes   int64
}

// NewSubmissionHandler creates a new submission handler.
func NewSubmissionHandler(moderation *service.ModerationService, maxBytes int64) *SubmissionHandler {
	return &SubmissionHandler{moderation: moderation, maxBytes: maxBytes}
}

// ReviewRequest is the body of the approve and reject endpoints.
type ReviewRequest struct {
	ReviewerID uint   `json:"reviewer_id" binding:"required"`
	Feedback   string `json:"feedback" binding:"max=255"`
}

// Submit handles POST /api/v1/submissions (multipart: image,
// contributor_id, scientific_name, tags).
func (h *SubmissionHandler) Submit(c *gin.Context) {
	contributorID, err := parseID(c.PostForm("contributor_id"), "contributor_id")
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := readUpload(c, "image", h.maxBytes)
	if err != nil {
		writeError(c, err)
		return
	}

	sub, err := h.moderation.Submit(c.Request.Context(), &service.SubmitRequest{
		ContributorID:  contributorID,
		ScientificName: c.PostForm("scientific_name"),
		Tags:           domain.ParseTags(c.PostForm("tags")),
		Image:          data,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusCreated, "submission received", gin.H{"submission": sub})
}

// Get handles GET /api/v1/submissions/:id.
func (h *SubmissionHandler) Get(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		writeError(c, err)
		return
	}
	sub, err := h.moderation.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "", gin.H{"submission": sub})
}

// ListPending handles GET /api/v1/submissions/pending, oldest first.
func (h *SubmissionHandler) ListPending(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		writeError(c, err)
		return
	}
	subs, err := h.moderation.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "", gin.H{"results": subs, "total": len(subs)})
}

// ListByContributor handles GET /api/v1/submissions?contributor_id=.
func (h *SubmissionHandler) ListByContributor(c *gin.Context) {
	contributorID, err := parseID(c.Query("contributor_id"), "contributor_id")
	if err != nil {
		writeError(c, err)
		return
	}
	limit, offset, err := pagination(c)
	if err != nil {
		writeError(c, err)
		return
	}
	subs, err := h.moderation.ListByContributor(c.Request.Context(), contributorID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "", gin.H{"results": subs, "total": len(subs)})
}

// Approve handles POST /api/v1/submissions/:id/approve.
func (h *SubmissionHandler) Approve(c *gin.Context) {
	id, req, ok := h.bindReview(c)
	if !ok {
		return
	}
	entry, err := h.moderation.Approve(c.Request.Context(), id, req.Feedback, req.ReviewerID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "submission approved", gin.H{"entry": entry})
}

// Reject handles POST /api/v1/submissions/:id/reject.
func (h *SubmissionHandler) Reject(c *gin.Context) {
	id, req, ok := h.bindReview(c)
	if !ok {
		return
	}
	sub, err := h.moderation.Reject(c.Request.Context(), id, req.Feedback, req.ReviewerID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "submission rejected", gin.H{"submission": sub})
}

func (h *SubmissionHandler) bindReview(c *gin.Context) (uint, *ReviewRequest, bool) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		writeError(c, err)
		return 0, nil, false
	}
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest("invalid request: %v", err))
		return 0, nil, false
	}
	return id, &req, true
}

func pagination(c *gin.Context) (limit, offset int, err error) {
	if limit, err = parseOptionalInt(c.Query("limit"), "limit", 20); err != nil {
		return 0, 0, err
	}
	if offset, err = parseOptionalInt(c.Query("offset"), "offset", 0); err != nil {
		return 0, 0, err
	}
	if limit <= 0 || limit > 100 {
		return 0, 0, badRequest("limit must be between 1 and 100")
	}
	if offset < 0 {
		return 0, 0, badRequest("offset must not be negative")
	}
	return limit, offset, nil
}
