package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tcg-binder/internal/logging"
	"github.com/codyseavey/tcg-binder/internal/services"
)

// respondError maps service errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrBinderNotFound), errors.Is(err, services.ErrVariantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrSlotOutOfRange), errors.Is(err, services.ErrInvalidVariant),
		errors.Is(err, services.ErrInvalidBinder):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logging.Sugar.Errorf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
