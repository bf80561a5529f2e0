package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"disambiguator/handlers"
	"disambiguator/middleware"
	"disambiguator/utils"
)

// RegisterDisambiguationRoutes registers the endpoints the conversation engine calls per turn.
func RegisterDisambiguationRoutes(r *gin.Engine, hb *handlers.HandlerBundle, logger *zap.Logger) {
	api := r.Group("/api/disambiguation")
	{
		api.Use(middleware.RateLimitMiddleware(hb.MaxRequestsPerMin, logger))
		api.POST("/start", hb.StartDisambiguationHandler)
		api.POST("/turn", hb.TurnHandler)
	}
}

// RegisterAdminRoutes sets up endpoints for admin operations.
func RegisterAdminRoutes(r *gin.Engine, hb *handlers.HandlerBundle, logger *zap.Logger) {
	adminGroup := r.Group("/api/admin/disambiguation")
	{
		adminGroup.Use(middleware.JWTAuthAdminMiddleware(hb.AdminJWTSecret, logger))
		adminGroup.POST("/test", hb.TestInputHandler)
		adminGroup.POST("/dry-run", hb.DryRunHandler)
		adminGroup.GET("/stats", hb.StatsHandler)
		adminGroup.DELETE("/cache", hb.ClearCacheHandler)
		adminGroup.POST("/cache/warm", hb.WarmCacheHandler)
		adminGroup.DELETE("/sessions", hb.ClearSessionsHandler)
		adminGroup.POST("/rules/reload", hb.ReloadRulesHandler)
	}
}

// RegisterHealthRoute registers the health-check and metrics endpoints.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
	r.GET("/metrics", hb.MetricsHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, logger *zap.Logger) {
	r.Use(utils.ErrorHandler(logger))
	r.Use(handlers.LoggerMiddleware(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", middleware.SessionHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r, hb)
	RegisterDisambiguationRoutes(r, hb, logger)
	RegisterAdminRoutes(r, hb, logger)
}
