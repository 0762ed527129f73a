package handlers

import (
	"aidirectory/middleware"
	"aidirectory/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter mounts every route. JSON endpoints live under /api/v1.
func NewRouter(a *API, auth *middleware.Auth, limiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestLogger(a.logger), middleware.Recovery(a.logger))
	if a.metrics != nil {
		r.Use(a.metrics.Instrument())
	}
	r.NoRoute(a.NoRoute)
	r.NoMethod(a.NoMethod)

	r.GET("/", a.Banner)
	r.GET("/api/health", a.Health)
	if a.features.MetricsEnabled && a.metrics != nil {
		r.GET("/metrics", a.metrics.Handler())
	}
	if a.uploads != nil {
		r.Static("/uploads", a.uploads.Root())
	}

	signedIn := auth.Require(middleware.Requirement{})
	premium := auth.Require(middleware.Requirement{MinTier: models.TierPremium})
	admin := auth.Require(middleware.Requirement{Admin: true})

	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth", limiter.Handler())
	{
		authGroup.POST("/register", a.Register)
		authGroup.POST("/login", a.Login)
		authGroup.POST("/refresh", a.Refresh)
		authGroup.GET("/verify", signedIn, a.Verify)
		authGroup.POST("/change-password", signedIn, a.ChangePassword)
	}

	users := v1.Group("/users")
	{
		users.GET("/me", signedIn, a.GetMe)
		users.PUT("/me", signedIn, a.UpdateMe)
		users.GET("/me/favorites", signedIn, a.ListMyFavorites)
		users.GET("/me/favorites/export", premium, a.ExportFavorites)

		users.GET("", admin, a.ListUsers)
		users.GET("/:id", admin, a.GetUser)
		users.PUT("/:id", admin, a.UpdateUser)
		users.DELETE("/:id", admin, a.DeleteUser)
	}

	tools := v1.Group("/tools")
	{
		tools.GET("", a.ListTools)
		tools.GET("/:id", auth.Identify(), a.GetTool)
		tools.POST("", admin, a.CreateTool)
		tools.PUT("/:id", admin, a.UpdateTool)
		tools.DELETE("/:id", admin, a.DeleteTool)

		tools.POST("/:id/favorite", premium, a.AddFavorite)
		tools.DELETE("/:id/favorite", signedIn, a.RemoveFavorite)

		tools.GET("/:id/guides", a.ListToolGuides)
		tools.POST("/:id/guides", admin, a.CreateToolGuide)

		tools.GET("/:id/reviews", a.ListReviews)
		tools.POST("/:id/reviews", premium, a.CreateReview)
	}

	guides := v1.Group("/guides")
	{
		guides.GET("", a.ListGuides)
		guides.POST("", signedIn, a.CreateGuide)
		guides.GET("/:id", a.GetGuide)
		guides.PUT("/:id", signedIn, a.UpdateGuide)
		guides.DELETE("/:id", signedIn, a.DeleteGuide)
	}

	reviews := v1.Group("/reviews")
	{
		reviews.GET("/:id", a.GetReview)
		reviews.PUT("/:id", signedIn, a.UpdateReview)
		reviews.DELETE("/:id", signedIn, a.DeleteReview)
		reviews.PUT("/:id/verify", admin, a.VerifyReview)
	}

	categories := v1.Group("/categories")
	{
		categories.GET("", a.ListCategories)
		categories.GET("/:id", a.GetCategory)
		categories.POST("", admin, a.CreateCategory)
		categories.PUT("/:id", admin, a.UpdateCategory)
		categories.DELETE("/:id", admin, a.DeleteCategory)
	}

	industries := v1.Group("/industries")
	{
		industries.GET("", a.ListIndustries)
		industries.GET("/:id", a.GetIndustry)
		industries.POST("", admin, a.CreateIndustry)
		industries.PUT("/:id", admin, a.UpdateIndustry)
		industries.DELETE("/:id", admin, a.DeleteIndustry)
	}

	subs := v1.Group("/subscriptions")
	{
		subs.GET("/plans", a.ListPlans)
		subs.POST("/subscribe", signedIn, a.Subscribe)
		subs.GET("/me", signedIn, a.GetMySubscription)
		subs.POST("/cancel", signedIn, a.CancelSubscription)
	}

	adminGroup := v1.Group("/admin", admin)
	{
		adminGroup.GET("/dashboard", a.Dashboard)
		adminGroup.GET("/activity", a.RecentActivity)
		adminGroup.GET("/users/stats", a.UserStats)
		adminGroup.GET("/tools/stats", a.ToolStats)
		adminGroup.GET("/revenue/stats", a.RevenueStats)
		adminGroup.GET("/subscriptions", a.ListSubscriptions)
		adminGroup.GET("/reviews", a.ListAllReviews)
	}

	a.logger.Debug("routes registered", zap.Int("count", len(r.Routes())))
	return r
}
