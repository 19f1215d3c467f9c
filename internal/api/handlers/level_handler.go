package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eccnsw/memberdesk/internal/config"
	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/services"
	"eccnsw/memberdesk/internal/utils"
)

// LevelHandler handles REST requests for the membership level catalog and
// the financial year selector.
type LevelHandler struct {
	levelService services.ILevelService
	cfg          *config.Config
}

// NewLevelHandler creates a new LevelHandler.
func NewLevelHandler(levelService services.ILevelService, cfg *config.Config) *LevelHandler {
	return &LevelHandler{levelService: levelService, cfg: cfg}
}

// ListGroups handles GET /v1/levels.
func (h *LevelHandler) ListGroups(c *gin.Context) {
	groups, err := h.levelService.ListGroups(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": groups})
}

// CreateGroup handles POST /v1/levels.
func (h *LevelHandler) CreateGroup(c *gin.Context) {
	var group models.MembershipGroup
	if err := c.ShouldBindJSON(&group); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	created, err := h.levelService.CreateGroup(c.Request.Context(), group)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateGroup handles PUT /v1/levels/:id.
func (h *LevelHandler) UpdateGroup(c *gin.Context) {
	groupID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}
	var group models.MembershipGroup
	if err := c.ShouldBindJSON(&group); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	group.SetID(groupID)

	updated, err := h.levelService.UpdateGroup(c.Request.Context(), group)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteGroup handles DELETE /v1/levels/:id.
func (h *LevelHandler) DeleteGroup(c *gin.Context) {
	groupID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}
	if err := h.levelService.DeleteGroup(c.Request.Context(), groupID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListFinancialYears handles GET /v1/financial-years: the selector range
// around the current financial year, newest first.
func (h *LevelHandler) ListFinancialYears(c *gin.Context) {
	years := models.FinancialYears(time.Now().UTC(), h.cfg.FinancialYearsPast, h.cfg.FinancialYearsFuture)
	c.JSON(http.StatusOK, gin.H{
		"data":    years,
		"current": models.CurrentFinancialYear(time.Now().UTC()).Label,
	})
}
