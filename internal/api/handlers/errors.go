package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"eccnsw/memberdesk/internal/engine"
	"eccnsw/memberdesk/internal/services"
)

// respondServiceError maps service and engine errors onto HTTP status codes.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrImportFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrInvoiceVoid),
		errors.Is(err, engine.ErrNegativePayment):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
