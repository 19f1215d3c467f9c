package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"eccnsw/memberdesk/internal/services"
)

// maxImportBytes bounds the accepted backup upload size.
const maxImportBytes = 32 << 20

// BackupHandler handles full-database export and import.
type BackupHandler struct {
	backupService services.IBackupService
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(backupService services.IBackupService) *BackupHandler {
	return &BackupHandler{backupService: backupService}
}

// Export handles GET /v1/backup/export.
func (h *BackupHandler) Export(c *gin.Context) {
	backup, err := h.backupService.Export(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=memberdesk-backup.json")
	c.JSON(http.StatusOK, backup)
}

// Import handles POST /v1/backup/import. The body is the raw backup file.
func (h *BackupHandler) Import(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}
	if err := h.backupService.Import(c.Request.Context(), raw); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
