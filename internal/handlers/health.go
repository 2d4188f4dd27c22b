package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/database"
	"github.com/feelize/platform/pkg/response"
)

const healthCheckTimeout = 2 * time.Second

// Health reports readiness, including database reachability.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(requestContext(c), healthCheckTimeout)
		defer cancel()

		checks := gin.H{"database": "ok"}
		if err := database.Ping(ctx, db); err != nil {
			checks["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, response.Response{
				Success: false,
				Data:    gin.H{"status": "degraded", "checks": checks},
			})
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok", "checks": checks})
	}
}
