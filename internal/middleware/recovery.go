package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/logger"
	"github.com/feelize/platform/pkg/response"
)

// Recovery converts panics into a 500 envelope and logs the error.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithModule("http").Error("panic",
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString(CtxRequestIDKey)),
					zap.Any("error", r),
					zap.Stack("stack"),
				)
				response.Error(c, apperrors.ErrInternalServer)
				c.Abort()
			}
		}()
		c.Next()
	}
}

// NotFoundHandler returns a JSON 404 envelope for unknown routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, apperrors.ErrNotFound.WithMessage(fmt.Sprintf("route %s not found", c.Request.URL.Path)))
}

// MethodNotAllowedHandler returns a JSON 405 envelope.
func MethodNotAllowedHandler(c *gin.Context) {
	response.Error(c, apperrors.ErrMethodNotAllowed)
}
