package server

import (
	"context"
	"net/http"
	"time"

	"github.com/compozy/executor/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	statusHealthy  = "healthy"
	statusNotReady = "not_ready"
	healthTimeout  = 2 * time.Second
)

// HealthCheck is one named readiness probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Health endpoint
//
//	@Summary      Get server health
//	@Description  Returns 200 when every component probe passes and 503 otherwise
//	@Tags         health
//	@Produce      json
//	@Success      200 {object} map[string]any "Service is healthy"
//	@Failure      503 {object} map[string]any "Service is not ready"
//	@Router       /health [get]
func CreateHealthHandler(version string, checks ...HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		ready := true
		components := gin.H{}
		for _, hc := range checks {
			entry := gin.H{"ready": true}
			if err := hc.Check(ctx); err != nil {
				logger.FromContext(ctx).Warn("Health check failed", "component", hc.Name, "error", err)
				entry = gin.H{"ready": false, "error": err.Error()}
				ready = false
			}
			components[hc.Name] = entry
		}
		status := statusHealthy
		code := http.StatusOK
		if !ready {
			status = statusNotReady
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"data": gin.H{
				"status":     status,
				"version":    version,
				"ready":      ready,
				"components": components,
			},
			"message": "Success",
		})
	}
}
