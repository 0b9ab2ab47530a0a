package server

import (
	"context"

	execrouter "github.com/compozy/executor/engine/execution/router"
	"github.com/compozy/executor/engine/infra/monitoring"
	"github.com/compozy/executor/pkg/logger"
	"github.com/compozy/executor/pkg/version"
	"github.com/gin-gonic/gin"
)

// RouterDeps carries what the HTTP surface needs.
type RouterDeps struct {
	Executions   execrouter.Service
	Monitoring   *monitoring.Service
	HealthChecks []HealthCheck
	RateLimit    gin.HandlerFunc
}

// BuildRouter mounts /health, the metrics endpoint when monitoring is
// initialized, and the execution routes at the root.
func BuildRouter(ctx context.Context, deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger.FromContext(ctx)))
	if deps.Monitoring != nil {
		r.Use(deps.Monitoring.GinMiddleware(ctx))
		if deps.Monitoring.IsInitialized() {
			r.GET(deps.Monitoring.Path(), gin.WrapH(deps.Monitoring.ExporterHandler()))
		}
	}
	if deps.RateLimit != nil {
		r.Use(deps.RateLimit)
	}
	r.GET("/health", CreateHealthHandler(version.Get().Version, deps.HealthChecks...))
	execrouter.Register(&r.RouterGroup, deps.Executions)
	return r
}
