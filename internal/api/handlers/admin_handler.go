package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"eccnsw/memberdesk/internal/models"
	"eccnsw/memberdesk/internal/services"
	"eccnsw/memberdesk/internal/storage"
	"eccnsw/memberdesk/internal/tasks"
)

// AdminHandler handles authentication, profile, settings and logo uploads.
type AdminHandler struct {
	adminService   services.IAdminService
	storageService storage.IS3Storage
	taskClient     *asynq.Client
}

// NewAdminHandler creates a new AdminHandler. taskClient may be nil; the
// logo is then stored unprocessed.
func NewAdminHandler(adminService services.IAdminService, storageService storage.IS3Storage, taskClient *asynq.Client) *AdminHandler {
	return &AdminHandler{
		adminService:   adminService,
		storageService: storageService,
		taskClient:     taskClient,
	}
}

// Login handles POST /v1/login.
func (h *AdminHandler) Login(c *gin.Context) {
	var input struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	token, err := h.adminService.Authenticate(c.Request.Context(), input.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout handles POST /v1/logout.
func (h *AdminHandler) Logout(c *gin.Context) {
	if err := h.adminService.RecordLogout(c.Request.Context()); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ChangePassword handles POST /v1/password.
func (h *AdminHandler) ChangePassword(c *gin.Context) {
	var input struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := h.adminService.ChangePassword(c.Request.Context(), input.CurrentPassword, input.NewPassword); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetProfile handles GET /v1/profile.
func (h *AdminHandler) GetProfile(c *gin.Context) {
	account, err := h.adminService.GetAccount(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":           account.Profile,
		"login_timestamps":  account.LoginTimestamps,
		"logout_timestamps": account.LogoutTimestamps,
	})
}

// UpdateProfile handles PUT /v1/profile.
func (h *AdminHandler) UpdateProfile(c *gin.Context) {
	var profile models.AdminProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	account, err := h.adminService.UpdateProfile(c.Request.Context(), profile)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, account.Profile)
}

// GetSettings handles GET /v1/settings.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.adminService.GetSettings(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings handles PUT /v1/settings.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var settings models.AppSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	updated, err := h.adminService.UpdateSettings(c.Request.Context(), settings)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// RequestLogoUpload handles POST /v1/settings/logo: returns a presigned PUT
// URL the client uploads the raw logo to.
func (h *AdminHandler) RequestLogoUpload(c *gin.Context) {
	var input struct {
		Filename    string `json:"filename" binding:"required"`
		ContentType string `json:"content_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	url, key, err := h.storageService.GeneratePresignedLogoPutURL(c.Request.Context(), input.Filename, input.ContentType)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upload_url": url, "key": key})
}

// CompleteLogoUpload handles POST /v1/settings/logo/complete: enqueues the
// processing task once the client finished uploading.
func (h *AdminHandler) CompleteLogoUpload(c *gin.Context) {
	var input struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if h.taskClient == nil {
		// No worker available; store the key as-is.
		settings, err := h.adminService.GetSettings(c.Request.Context())
		if err != nil {
			respondServiceError(c, err)
			return
		}
		settings.CustomLogoKey = input.Key
		if _, err := h.adminService.UpdateSettings(c.Request.Context(), *settings); err != nil {
			respondServiceError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
		return
	}

	payload, err := json.Marshal(tasks.LogoTaskPayload{S3Key: input.Key})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	task := asynq.NewTask(tasks.TypeLogoProcess, payload)
	if _, err := h.taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
		log.Printf("Error enqueueing logo processing for %s: %v", input.Key, err)
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
