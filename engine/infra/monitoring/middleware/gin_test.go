package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newRouter(t *testing.T) (*gin.Engine, *sdkmetric.ManualReader) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	router := gin.New()
	router.Use(HTTPMetrics(t.Context(), provider.Meter("test")))
	router.GET("/executions/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	return router, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestHTTPMetrics(t *testing.T) {
	t.Run("Should record count and latency labeled by route template", func(t *testing.T) {
		router, reader := newRouter(t)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/executions/abc", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
		got := collect(t, reader)
		total, ok := got["executor_http_requests_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, total.DataPoints, 1)
		attrs := total.DataPoints[0].Attributes.ToSlice()
		assert.Contains(t, attrs, attribute.String("method", "GET"))
		assert.Contains(t, attrs, attribute.String("path", "/executions/:id"))
		assert.Contains(t, attrs, attribute.String("status_code", "200"))
		assert.Equal(t, int64(1), total.DataPoints[0].Value)
		hist, ok := got["executor_http_request_duration_seconds"].Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		assert.Len(t, hist.DataPoints, 1)
		inFlight, ok := got["executor_http_requests_in_flight"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, inFlight.DataPoints, 1)
		assert.Equal(t, int64(0), inFlight.DataPoints[0].Value)
	})
	t.Run("Should label unmatched routes", func(t *testing.T) {
		router, reader := newRouter(t)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))
		assert.Equal(t, http.StatusNotFound, w.Code)
		total, ok := collect(t, reader)["executor_http_requests_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, total.DataPoints, 1)
		assert.Contains(t, total.DataPoints[0].Attributes.ToSlice(), attribute.String("path", "unmatched"))
	})
	t.Run("Should pass through with a nil or no-op meter", func(t *testing.T) {
		handlers := []gin.HandlerFunc{
			HTTPMetrics(t.Context(), nil),
			HTTPMetrics(t.Context(), noop.NewMeterProvider().Meter("x")),
		}
		for _, handler := range handlers {
			router := gin.New()
			router.Use(handler)
			router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", http.NoBody))
			assert.Equal(t, http.StatusNoContent, w.Code)
		}
	})
}
