package api

import (
	"github.com/gin-gonic/gin"

	"github.com/feelize/platform/internal/app"
	"github.com/feelize/platform/internal/handlers"
	"github.com/feelize/platform/internal/middleware"
)

func registerAuthRoutes(public, protected *gin.RouterGroup, handler *handlers.AuthHandler, passcodeLimit app.RateLimit) {
	auth := public.Group("/auth")
	{
		auth.POST("/session", handler.Session)
		auth.POST("/logout", handler.Logout)
		auth.POST("/passcode", middleware.RateLimit(passcodeLimit.Requests, passcodeLimit.Window), handler.RequestPasscode)
		auth.POST("/passcode/verify", middleware.RateLimit(passcodeLimit.Requests, passcodeLimit.Window), handler.VerifyPasscode)
	}

	protected.GET("/auth/me", handler.Me)
}

func registerUserRoutes(protected *gin.RouterGroup, handler *handlers.UserHandler, adminOnly gin.HandlerFunc) {
	users := protected.Group("/users", adminOnly)
	{
		users.GET("", handler.List)
		users.GET("/:id", handler.Get)
		users.PUT("/:id/ban", handler.Ban)
		users.PUT("/:id/access", handler.SetAccess)
	}
}
