package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/compozy/executor/engine/infra/server/router"
	"github.com/compozy/executor/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const (
	DefaultLimit  int64 = 100
	DefaultPeriod       = time.Minute
	DefaultPrefix       = "executor:ratelimit"
)

// Config is a single per-client-IP budget applied to every route except
// ExcludedPaths.
type Config struct {
	Limit         int64
	Period        time.Duration
	Prefix        string
	ExcludedPaths []string
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}
	if out.Period <= 0 {
		out.Period = DefaultPeriod
	}
	if out.Prefix == "" {
		out.Prefix = DefaultPrefix
	}
	return out
}

// ToLimiterRate converts the budget to a limiter.Rate
func (c *Config) ToLimiterRate() limiter.Rate {
	cfg := c.withDefaults()
	return limiter.Rate{Period: cfg.Period, Limit: cfg.Limit}
}

// NewStore returns a Redis-backed store when client is set so replicas share
// one budget, and an in-memory store otherwise.
func NewStore(client redis.UniversalClient, prefix string) (limiter.Store, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          prefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   prefix,
		MaxRetry: limiter.DefaultMaxRetry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
	}
	return store, nil
}

// Middleware rejects requests over budget with 429. Store failures let the
// request through.
func Middleware(ctx context.Context, cfg *Config, store limiter.Store) gin.HandlerFunc {
	log := logger.FromContext(ctx)
	excluded := make(map[string]struct{}, len(cfg.ExcludedPaths))
	for _, p := range cfg.ExcludedPaths {
		excluded[p] = struct{}{}
	}
	limit := mgin.NewMiddleware(
		limiter.New(store, cfg.ToLimiterRate()),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			router.RespondWithError(
				c,
				router.NewRequestError(http.StatusTooManyRequests, "rate limit exceeded", nil),
			)
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			log.Warn("Rate limiter unavailable", "path", c.Request.URL.Path, "error", err)
			c.Next()
		}),
	)
	return func(c *gin.Context) {
		if _, ok := excluded[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		limit(c)
	}
}
