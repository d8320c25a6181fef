// Package http assembles the gin route tree and the server hosting it.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/prometheus"
	"github.com/lokaskor/lokaskor/internal/interfaces/http/handlers"
	"github.com/lokaskor/lokaskor/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.
type RouterConfig struct {
	SessionHandler *handlers.SessionHandler
	HealthHandler  *handlers.HealthHandler

	CORS    middleware.CORSConfig
	Logging middleware.LoggingConfig

	Logger  logging.Logger
	Metrics *prometheus.Metrics
}

// NewRouter builds the complete route tree: global middleware, public health
// and metrics endpoints, and the /api/v1 session routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	r.Use(middleware.CORS(cfg.CORS))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api/v1")
	registerSessionRoutes(api, cfg.SessionHandler)
	return r
}

func registerSessionRoutes(r *gin.RouterGroup, h *handlers.SessionHandler) {
	if h == nil {
		return
	}
	sessions := r.Group("/sessions")
	sessions.POST("", h.Create)

	item := sessions.Group("/:id")
	item.GET("/state", h.State)
	item.DELETE("", h.Destroy)

	item.POST("/locations", h.AddLocation)
	item.DELETE("/locations/:locID", h.RemoveLocation)
	item.POST("/analyze", h.Analyze)

	item.POST("/region", h.SelectRegion)
	item.POST("/region/analyze", h.AnalyzeRegion)

	item.POST("/panels/toggle", h.TogglePanel)
}
