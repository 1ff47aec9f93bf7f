package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/oakley-grocery/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log zerolog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log = log.With().Str("component", "http").Logger()
	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		resolve := v1.Group("/resolve")
		{
			resolve.POST("", handler.Resolve)
			resolve.POST("/batch", handler.ResolveBatch)
		}

		prefs := v1.Group("/preferences")
		{
			prefs.POST("", handler.LearnPreference)
			prefs.GET("", handler.ListPreferences)
			prefs.GET("/:name", handler.GetPreference)
			prefs.DELETE("/:name", handler.DeletePreference)
		}

		v1.GET("/products/:code", handler.ProductDetails)
		v1.GET("/specials", handler.Specials)
	}

	return router
}
