package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/prospect-discovery/internal/config"
	"github.com/jonesrussell/prospect-discovery/internal/logger"
	"github.com/jonesrussell/prospect-discovery/internal/telemetry"
)

// NewRouter builds the Gin engine with standard middleware and all
// service routes.
func NewRouter(cfg *config.Config, handler *Handler, metrics *telemetry.Metrics, log logger.Logger) *gin.Engine {
	if cfg.Service.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Recovery first to catch panics in everything below.
	router.Use(RecoveryMiddleware(log))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": cfg.Service.Name,
			"version": cfg.Service.Version,
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	discoveries := v1.Group("/discoveries")
	discoveries.POST("", handler.StartDiscovery)
	discoveries.GET("/:id", handler.GetDiscovery)
	discoveries.GET("/:id/stream", handler.StreamDiscovery)
	discoveries.DELETE("/:id", handler.CancelDiscovery)

	return router
}
