package handlers

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"windplex/internal/models"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// GetHealth reports database reachability and the notification backlog
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
		return
	}

	var pending int64
	if err := h.db.WithContext(ctx).Model(&models.NotificationOutbox{}).
		Where("status = ?", models.OutboxPending).Count(&pending).Error; err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "notifications": "unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":                "ok",
		"message":               "Windplex API is running",
		"pending_notifications": pending,
	})
}
