package api

import (
	"net/http"

	"ipwatch/internal/api/middleware"
	av1 "ipwatch/internal/api/v1"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Router is the gin engine serving the status API
type Router struct {
	engine *gin.Engine
}

// NewRouter wires middleware and routes. Gin runs in release mode unless debug is set.
func NewRouter(h av1.History, status av1.StatusProvider, debug bool, logger *zap.Logger) *Router {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.AccessLog(logger),
		middleware.Recover(logger),
		middleware.Headers(),
	)

	api := av1.NewAPI(h, status, logger)
	engine.GET("/health", api.HealthCheck)
	api.RegisterRoutes(engine.Group("/api/v1"))

	return &Router{engine: engine}
}

// Handler returns the HTTP handler
func (r *Router) Handler() http.Handler {
	return r.engine
}
