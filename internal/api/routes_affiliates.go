package api

import (
	"github.com/gin-gonic/gin"

	"github.com/feelize/platform/internal/handlers"
)

func registerAffiliateRoutes(public, protected *gin.RouterGroup, affiliates *handlers.AffiliateHandler, referrals *handlers.ReferralHandler, adminOnly gin.HandlerFunc) {
	public.GET("/affiliates/check-code/:code", affiliates.CheckCode)

	group := protected.Group("/affiliates")
	{
		group.POST("", affiliates.Create)
		group.GET("", adminOnly, affiliates.List)
		group.GET("/me", affiliates.Me)
		group.GET("/:id", affiliates.Get)
		group.PUT("/:id", affiliates.Update)
		group.PATCH("/:id", affiliates.Update)
		group.PUT("/:id/status", adminOnly, affiliates.UpdateStatus)
		group.GET("/:id/stats", affiliates.Stats)
		group.GET("/:id/referrals", affiliates.Referrals)
	}

	refs := protected.Group("/referrals")
	{
		refs.GET("", referrals.List)
		refs.POST("", adminOnly, referrals.Create)
		refs.GET("/:id", referrals.Get)
		refs.PUT("/:id/status", adminOnly, referrals.UpdateStatus)
	}
}
