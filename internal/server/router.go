// internal/server/router.go
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stylist-pipeline/internal/common/config"
	"stylist-pipeline/internal/common/database"
	cerrors "stylist-pipeline/internal/common/errors"
	"stylist-pipeline/internal/wardrobe"
)

// Deps carries everything the router wires into handlers. Notifier, Redis
// and Postgres may be nil when the deployment does not use them.
type Deps struct {
	Config   *config.Config
	Runner   PipelineRunner
	Wardrobe wardrobe.Provider
	Notifier ResultNotifier
	Redis    *database.RedisClient
	Postgres *database.PostgresClient
	Logger   Logger
}

// NewRouter builds the HTTP front door: the styling endpoint, the status
// poller and the operational endpoints.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(deps.Logger))

	errHandler := cerrors.NewErrorHandler(deps.Logger)
	analyze := NewAnalyzeHandler(deps.Runner, deps.Wardrobe, deps.Notifier, errHandler, deps.Logger)
	status := NewStatusHandler(deps.Redis, deps.Config.Status, deps.Logger)
	health := NewHealthHandler(deps.Config.App, deps.Postgres, deps.Redis)

	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/analyze-and-style", analyze.Handle)
		api.GET("/status/:request_id", status.Handle)
	}

	return router
}

// requestLogger records one line per request. Probe endpoints are skipped
// to keep the log readable.
func requestLogger(logger Logger) gin.HandlerFunc {
	log := logger.With(map[string]interface{}{"component": "http"})
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		log.Info("Request completed", map[string]interface{}{
			"method":   c.Request.Method,
			"path":     path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"clientIp": c.ClientIP(),
		})
	}
}
