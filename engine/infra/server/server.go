package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/compozy/executor/pkg/config"
	"github.com/compozy/executor/pkg/logger"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	monitoringShutdownTimeout = 5 * time.Second
	dbShutdownTimeout         = 30 * time.Second
	cleanupTimeout            = 30 * time.Second
	defaultShutdownTimeout    = 5 * time.Second
)

// Server runs the HTTP API, the reconciler and optionally the embedded worker
// until it receives SIGINT/SIGTERM or its context is canceled.
type Server struct {
	cfg    *config.Config
	ctx    context.Context
	router *gin.Engine
}

func NewServer(ctx context.Context) (*Server, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("configuration missing from context")
	}
	return &Server{cfg: cfg, ctx: ctx}, nil
}

func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	s.ctx = ctx
	deps, cleanups, err := s.setupDependencies()
	if err != nil {
		return err
	}
	defer s.cleanup(cleanups)
	s.router = BuildRouter(ctx, RouterDeps{
		Executions:   deps.service,
		Monitoring:   deps.monitoring,
		HealthChecks: deps.health,
		RateLimit:    deps.rateLimit,
	})
	listener, err := net.Listen("tcp", s.cfg.Server.FullAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Server.FullAddress(), err)
	}
	return s.serve(ctx, listener, deps)
}

func (s *Server) serve(ctx context.Context, listener net.Listener, deps *dependencies) error {
	log := logger.FromContext(ctx)
	srv := s.createHTTPServer()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("http://%s", listener.Addr()))
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return deps.reconciler.Run(gctx)
	})
	if deps.worker != nil {
		g.Go(func() error {
			return deps.worker.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Shutting down HTTP server")
		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server shutdown completed successfully")
	return nil
}

func (s *Server) createHTTPServer() *http.Server {
	return &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(s.ctx) },
	}
}
