package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agroprecios/backend/config"
	"github.com/agroprecios/backend/internal/logger"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log *zap.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log = logger.OrNop(log)

	router := gin.New()

	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/retailers", handler.ListRetailers)
		v1.POST("/pipeline/run", handler.RunPipeline)
		v1.POST("/classify", handler.Classify)
	}

	return router
}
