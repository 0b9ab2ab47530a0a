package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/compozy/executor/engine/infra/server/router"
	"github.com/compozy/executor/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
)

func newEngine(t *testing.T, cfg *Config, store limiter.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := logger.ContextWithLogger(t.Context(), logger.NewForTests())
	r := gin.New()
	r.Use(Middleware(ctx, cfg, store))
	r.GET("/executions", func(c *gin.Context) { c.JSON(http.StatusOK, []any{}) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.RemoteAddr = "10.0.0.1:4321"
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware(t *testing.T) {
	t.Run("Should reject requests over the budget with the error envelope", func(t *testing.T) {
		store, err := NewStore(nil, "")
		require.NoError(t, err)
		r := newEngine(t, &Config{Limit: 2, Period: time.Minute}, store)
		assert.Equal(t, http.StatusOK, do(r, "/executions").Code)
		second := do(r, "/executions")
		assert.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, "2", second.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
		third := do(r, "/executions")
		require.Equal(t, http.StatusTooManyRequests, third.Code)
		var body router.ErrorResponse
		require.NoError(t, json.Unmarshal(third.Body.Bytes(), &body))
		assert.Equal(t, router.ErrTooManyRequestsCode, body.Error.Code)
	})
	t.Run("Should never limit excluded paths", func(t *testing.T) {
		store, err := NewStore(nil, "")
		require.NoError(t, err)
		r := newEngine(t, &Config{Limit: 1, Period: time.Minute, ExcludedPaths: []string{"/health"}}, store)
		for range 5 {
			assert.Equal(t, http.StatusOK, do(r, "/health").Code)
		}
		assert.Equal(t, http.StatusOK, do(r, "/executions").Code)
		assert.Equal(t, http.StatusTooManyRequests, do(r, "/executions").Code)
	})
	t.Run("Should share the budget through redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		store, err := NewStore(client, "test:rl")
		require.NoError(t, err)
		cfg := &Config{Limit: 1, Period: time.Minute}
		first := newEngine(t, cfg, store)
		second := newEngine(t, cfg, store)
		assert.Equal(t, http.StatusOK, do(first, "/executions").Code)
		assert.Equal(t, http.StatusTooManyRequests, do(second, "/executions").Code)
		assert.NotEmpty(t, mr.Keys())
	})
	t.Run("Should let requests through when the store fails", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		t.Cleanup(func() { _ = client.Close() })
		store, err := NewStore(client, "test:rl")
		require.NoError(t, err)
		mr.Close()
		r := newEngine(t, &Config{Limit: 1, Period: time.Minute}, store)
		assert.Equal(t, http.StatusOK, do(r, "/executions").Code)
	})
}

func TestConfig_ToLimiterRate(t *testing.T) {
	t.Run("Should fall back to defaults for zero values", func(t *testing.T) {
		rate := (&Config{}).ToLimiterRate()
		assert.Equal(t, DefaultLimit, rate.Limit)
		assert.Equal(t, DefaultPeriod, rate.Period)
	})
}
