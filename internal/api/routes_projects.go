package api

import (
	"github.com/gin-gonic/gin"

	"github.com/feelize/platform/internal/handlers"
	"github.com/feelize/platform/internal/middleware"
	"github.com/feelize/platform/internal/models"
)

func registerProjectRoutes(protected *gin.RouterGroup, projects *handlers.ProjectHandler, tasks *handlers.TaskHandler, activities *handlers.ActivityHandler) {
	group := protected.Group("/projects")
	{
		group.POST("", projects.Create)
		group.GET("", projects.List)
		group.GET("/:id", projects.Get)
		group.PUT("/:id", projects.Update)
		group.PATCH("/:id", projects.Update)
		group.DELETE("/:id", projects.Delete)
		group.GET("/:id/messages", projects.ListMessages)
		group.POST("/:id/messages", projects.PostMessage)
	}

	taskGroup := protected.Group("/tasks")
	{
		taskGroup.POST("", tasks.Create)
		taskGroup.GET("", tasks.List)
		taskGroup.GET("/:id", tasks.Get)
		taskGroup.PUT("/:id", tasks.Update)
		taskGroup.PATCH("/:id", tasks.Update)
		taskGroup.DELETE("/:id", tasks.Delete)
	}

	feed := protected.Group("/activities")
	{
		feed.POST("", activities.Create)
		feed.GET("", activities.List)
		feed.GET("/:id", activities.Get)
		feed.DELETE("/:id", middleware.RequireAccess(models.AccessAdmin), activities.Delete)
	}
}

func registerEngineerRoutes(public, protected *gin.RouterGroup, handler *handlers.EngineerHandler, adminOnly gin.HandlerFunc) {
	public.GET("/engineers", handler.List)
	public.GET("/engineers/:id", handler.Get)

	group := protected.Group("/engineers", adminOnly)
	{
		group.POST("", handler.Create)
		group.PUT("/:id", handler.Update)
		group.PATCH("/:id", handler.Update)
		group.DELETE("/:id", handler.Delete)
	}
}
