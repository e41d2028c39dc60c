package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/providentia/internal/common"
)

// Health reports liveness plus per-dependency status. Unauthenticated.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	services := gin.H{"db": false, "redis": false}

	if h.DB != nil {
		if sqlDB, err := h.DB.DB(); err == nil && sqlDB.PingContext(ctx) == nil {
			services["db"] = true
		}
	}
	if h.Redis != nil && h.Redis.Ping(ctx).Err() == nil {
		services["redis"] = true
	}

	status := "healthy"
	for _, up := range services {
		if up != true {
			status = "degraded"
			break
		}
	}

	common.OK(c, gin.H{
		"status":    status,
		"services":  services,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
