package http

import (
	"github.com/gin-gonic/gin"
	"github.com/pricelens/backend/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestLogger(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		auth := v1.Group("/auth")
		{
			auth.POST("", handler.Login)
			auth.GET("", handler.AuthStatus)
			auth.DELETE("", handler.Logout)
		}

		protected := v1.Group("")
		protected.Use(SessionMiddleware(handler.sessions))
		{
			protected.POST("/ocr", handler.Scan)
			protected.POST("/products/extract", handler.Extract)
			protected.POST("/price-compare", handler.Compare)
			protected.POST("/price-compare/batch", handler.CompareBatch)
			protected.GET("/usage", handler.Usage)
		}
	}

	return router
}
