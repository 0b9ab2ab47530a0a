package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/compozy/executor/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLoggerMiddleware(t *testing.T) {
	t.Run("Should attach the logger to the request context", func(t *testing.T) {
		log := logger.NewForTests()
		r := gin.New()
		r.Use(LoggerMiddleware(log))
		var seen logger.Logger
		r.GET("/x", func(c *gin.Context) {
			seen = logger.FromContext(c.Request.Context())
			c.Status(http.StatusNoContent)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?a=1", http.NoBody))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, log, seen)
	})
}
