package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/fishlens/internal/domain"
	"github.com/timmy/fishlens/internal/service"
)

// CatalogHandler serves the taxonomy and catalog entry endpoints.
type CatalogHandler struct {
	catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

type CreateFishTypeRequest struct {
	CommonName     string `json:"common_name" binding:"required,max=40"`
	ScientificName string `json:"scientific_name" binding:"required,max=40"`
	Description    string `json:"description"`
}

// ListFishTypes handles GET /api/v1/fish-types.
func (h *CatalogHandler) ListFishTypes(c *gin.Context) {
	types, err := h.catalog.ListFishTypes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "", gin.H{"results": types, "total": len(types)})
}

// CreateFishType handles POST /api/v1/fish-types.
func (h *CatalogHandler) CreateFishType(c *gin.Context) {
	var req CreateFishTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest("invalid request: %v", err))
		return
	}
	ft, err := h.catalog.CreateFishType(c.Request.Context(), &domain.FishType{
		CommonName:     req.CommonName,
		ScientificName: req.ScientificName,
		Description:    req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusCreated, "fish type created", gin.H{"fish_type": ft})
}

// GetEntry handles GET /api/v1/catalog/:id.
func (h *CatalogHandler) GetEntry(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		writeError(c, err)
		return
	}
	match, err := h.catalog.GetEntry(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "", gin.H{"entry": match})
}

// RemoveEntry handles DELETE /api/v1/catalog/:id.
func (h *CatalogHandler) RemoveEntry(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.catalog.RemoveEntry(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, http.StatusOK, "catalog entry removed", nil)
}
