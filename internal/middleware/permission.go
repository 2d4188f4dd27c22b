package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/feelize/platform/internal/models"
	apperrors "github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/metrics"
	"github.com/feelize/platform/pkg/response"
)

// RequireAccess admits only users whose access level is one of levels. It must run after
// SessionAuth.
func RequireAccess(levels ...models.AccessLevel) gin.HandlerFunc {
	allowed := make(map[models.AccessLevel]struct{}, len(levels))
	for _, level := range levels {
		allowed[level] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			reject(c, "missing_user", apperrors.ErrUnauthenticated.Message)
			return
		}
		if _, ok := allowed[user.AccessLevel]; !ok {
			metrics.GateRejections.WithLabelValues("forbidden").Inc()
			response.Error(c, apperrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
