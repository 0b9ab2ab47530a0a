package temporal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/compozy/executor/pkg/logger"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/client"
)

const (
	defaultDialTimeout = 30 * time.Second
	dialBackoffBase    = 250 * time.Millisecond
	dialBackoffMax     = 5 * time.Second
)

type Config struct {
	HostPort     string
	Namespace    string
	TaskQueue    string
	WorkflowType string
	// DialTimeout bounds the total time spent retrying the initial dial.
	DialTimeout time.Duration
}

func clientOptions(ctx context.Context, cfg *Config) client.Options {
	return client.Options{
		HostPort:  normalizeHostPort(cfg.HostPort),
		Namespace: cfg.Namespace,
		Logger:    logger.FromContext(ctx),
	}
}

// Connect returns a client that dials on first use, so an unreachable engine
// surfaces as per-call ErrEngineUnavailable instead of a startup failure.
func Connect(ctx context.Context, cfg *Config) (client.Client, error) {
	options := clientOptions(ctx, cfg)
	c, err := client.NewLazyClient(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	logger.FromContext(ctx).Debug("Temporal client created", "host_port", options.HostPort, "lazy", true)
	return c, nil
}

// Dial connects to Temporal, retrying with capped exponential backoff until
// DialTimeout elapses. This is startup policy only; the facade never retries.
func Dial(ctx context.Context, cfg *Config) (client.Client, error) {
	log := logger.FromContext(ctx)
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	options := clientOptions(ctx, cfg)
	backoff := retry.WithMaxDuration(timeout, retry.WithCappedDuration(dialBackoffMax, retry.NewExponential(dialBackoffBase)))
	dialStart := time.Now()
	var temporalClient client.Client
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		c, err := client.DialContext(ctx, options)
		if err != nil {
			log.Warn("Temporal dial failed", "host_port", options.HostPort, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		temporalClient = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	log.Debug("Temporal client connected", "host_port", options.HostPort, "duration", time.Since(dialStart))
	return temporalClient, nil
}

// normalizeHostPort accepts URL style addresses such as http://localhost:7233.
func normalizeHostPort(raw string) string {
	hostPort := strings.TrimSpace(raw)
	for _, scheme := range []string{"http://", "https://", "grpc://", "dns:///"} {
		if strings.HasPrefix(strings.ToLower(hostPort), scheme) {
			hostPort = hostPort[len(scheme):]
			break
		}
	}
	return strings.TrimRight(hostPort, "/")
}
