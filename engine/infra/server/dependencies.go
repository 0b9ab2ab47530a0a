package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/compozy/executor/engine/execution"
	"github.com/compozy/executor/engine/infra/cache"
	"github.com/compozy/executor/engine/infra/monitoring"
	"github.com/compozy/executor/engine/infra/repo"
	"github.com/compozy/executor/engine/infra/server/middleware/ratelimit"
	"github.com/compozy/executor/engine/infra/temporal"
	"github.com/compozy/executor/engine/reconciler"
	"github.com/compozy/executor/pkg/config"
	"github.com/compozy/executor/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type dependencies struct {
	service    *execution.Service
	reconciler *reconciler.Reconciler
	worker     *temporal.Worker
	monitoring *monitoring.Service
	health     []HealthCheck
	rateLimit  gin.HandlerFunc
}

// TemporalConfig converts the application section to the client config.
func TemporalConfig(cfg *config.TemporalConfig) *temporal.Config {
	return &temporal.Config{
		HostPort:     cfg.HostPort,
		Namespace:    cfg.Namespace,
		TaskQueue:    cfg.TaskQueue,
		WorkflowType: cfg.WorkflowType,
		DialTimeout:  cfg.DialTimeout,
	}
}

func (s *Server) setupDependencies() (*dependencies, []func(), error) {
	var cleanups []func()
	fail := func(err error) (*dependencies, []func(), error) {
		s.cleanup(cleanups)
		return nil, nil, err
	}
	deps := &dependencies{}
	deps.monitoring = s.setupMonitoring(&cleanups)
	provider, err := s.setupStore(&cleanups)
	if err != nil {
		return fail(err)
	}
	deps.health = append(deps.health, HealthCheck{Name: "database", Check: provider.HealthCheck})
	client, err := temporal.Connect(s.ctx, TemporalConfig(&s.cfg.Temporal))
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, client.Close)
	deps.service = execution.NewService(
		provider.NewExecutionRepo(),
		temporal.NewFacade(client),
		execution.Config{TaskQueue: s.cfg.Temporal.TaskQueue, WorkflowType: s.cfg.Temporal.WorkflowType},
	)
	redisClient, err := s.setupRedis(&cleanups)
	if err != nil {
		return fail(err)
	}
	opts := []reconciler.Option{reconciler.WithMeter(deps.monitoring.Meter())}
	if redisClient != nil {
		deps.health = append(deps.health, HealthCheck{Name: "redis", Check: redisClient.HealthCheck})
		lease := cache.NewLease(redisClient.Client(), cache.DefaultLeaseKey, leaseOwner(), s.leaseTTL())
		opts = append(opts, reconciler.WithLease(lease))
	}
	if deps.rateLimit, err = s.setupRateLimit(redisClient); err != nil {
		return fail(err)
	}
	deps.reconciler = reconciler.New(reconciler.Config{
		Interval:    s.cfg.Reconciler.Interval,
		Concurrency: s.cfg.Reconciler.Concurrency,
		CallTimeout: s.cfg.Reconciler.CallTimeout,
	}, deps.service, opts...)
	if s.cfg.Worker.Enabled {
		deps.worker = temporal.NewWorker(
			client,
			s.cfg.Temporal.TaskQueue,
			temporal.NewActivities(),
			deps.monitoring.TemporalInterceptor(s.ctx),
		)
	}
	return deps, cleanups, nil
}

func (s *Server) setupMonitoring(cleanups *[]func()) *monitoring.Service {
	svc := monitoring.NewMonitoringServiceWithFallback(s.ctx, &monitoring.Config{
		Enabled: s.cfg.Monitoring.Enabled,
		Path:    s.cfg.Monitoring.Path,
	})
	svc.SetAsGlobal()
	*cleanups = append(*cleanups, func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), monitoringShutdownTimeout)
		defer cancel()
		if err := svc.Shutdown(ctx); err != nil {
			logger.FromContext(s.ctx).Error("Failed to shutdown monitoring", "error", err)
		}
	})
	return svc
}

func (s *Server) setupStore(cleanups *[]func()) (*repo.Provider, error) {
	log := logger.FromContext(s.ctx)
	start := time.Now()
	provider, err := repo.NewProvider(s.ctx, &s.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	log.Info("Store initialized", "driver", provider.Driver(), "duration", time.Since(start))
	*cleanups = append(*cleanups, func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), dbShutdownTimeout)
		defer cancel()
		if err := provider.Close(ctx); err != nil {
			log.Error("Failed to close store", "error", err)
		}
	})
	return provider, nil
}

// setupRedis returns nil when no Redis address is configured.
func (s *Server) setupRedis(cleanups *[]func()) (*cache.Redis, error) {
	if s.cfg.Redis.Addr == "" {
		return nil, nil
	}
	client, err := cache.NewRedis(s.ctx, &cache.Config{
		Addr:     s.cfg.Redis.Addr,
		Password: s.cfg.Redis.Password,
		DB:       s.cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	*cleanups = append(*cleanups, func() { _ = client.Close() })
	logger.FromContext(s.ctx).Info("Redis connected", "addr", s.cfg.Redis.Addr)
	return client, nil
}

// setupRateLimit returns nil when rate limiting is disabled.
func (s *Server) setupRateLimit(client *cache.Redis) (gin.HandlerFunc, error) {
	if !s.cfg.RateLimit.Enabled {
		return nil, nil
	}
	var rc redis.UniversalClient
	if client != nil {
		rc = client.Client()
	}
	store, err := ratelimit.NewStore(rc, s.cfg.RateLimit.Prefix)
	if err != nil {
		return nil, err
	}
	return ratelimit.Middleware(s.ctx, &ratelimit.Config{
		Limit:         s.cfg.RateLimit.Limit,
		Period:        s.cfg.RateLimit.Period,
		Prefix:        s.cfg.RateLimit.Prefix,
		ExcludedPaths: []string{"/health", s.cfg.Monitoring.Path},
	}, store), nil
}

func (s *Server) leaseTTL() time.Duration {
	if s.cfg.Reconciler.LeaseTTL > 0 {
		return s.cfg.Reconciler.LeaseTTL
	}
	return 2 * s.cfg.Reconciler.Interval
}

func leaseOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "executor"
	}
	return host + "-" + uuid.NewString()
}

// cleanup runs cleanups in reverse order, each bounded by cleanupTimeout.
func (s *Server) cleanup(cleanups []func()) {
	log := logger.FromContext(s.ctx)
	for i := len(cleanups) - 1; i >= 0; i-- {
		done := make(chan struct{})
		go func(fn func()) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("Cleanup function panicked", "index", i, "panic", r)
				}
				close(done)
			}()
			fn()
		}(cleanups[i])
		select {
		case <-done:
		case <-time.After(cleanupTimeout):
			log.Warn("Cleanup function exceeded timeout", "index", i, "timeout", cleanupTimeout)
		}
	}
}
