package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"windplex/internal/services"
)

// respondError maps a service error to its status and category. Internal
// detail is only exposed when debug is set.
func respondError(c *gin.Context, err error, debug bool) {
	var fe *services.FieldError
	switch {
	case errors.As(err, &fe):
		c.JSON(http.StatusBadRequest, gin.H{"error": fe.Message, "category": "validation", "field": fe.Field})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "category": "validation"})
	case errors.Is(err, services.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "category": "authentication"})
	case errors.Is(err, services.ErrLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "category": "locked"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "category": "authorization"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "category": "not_found"})
	case errors.Is(err, services.ErrConflict):
		// Conflicts share the 400 status with validation; the category tells
		// them apart.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "category": "conflict"})
	default:
		_ = c.Error(err)
		body := gin.H{"error": "Internal server error", "category": "internal"}
		if debug {
			body["detail"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}

// respondBindError reports a malformed request body.
func respondBindError(c *gin.Context, err error, debug bool) {
	body := gin.H{"error": "Invalid request", "category": "validation"}
	if debug {
		body["detail"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
