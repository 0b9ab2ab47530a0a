package postgres

import (
	"context"
	"fmt"
	"strings"

	monitoringmetrics "github.com/compozy/executor/engine/infra/monitoring/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultPoolLabel  = "default"
	postgresMeterName = "executor.postgres"
)

// poolMetrics observes pgxpool statistics through async gauges.
type poolMetrics struct {
	registration metric.Registration
}

func registerPoolMetrics(label string, pool *pgxpool.Pool) (*poolMetrics, error) {
	meter := otel.GetMeterProvider().Meter(postgresMeterName)
	open, err := meter.Int64ObservableGauge(
		monitoringmetrics.MetricNameWithSubsystem("postgres", "connections_open"),
		metric.WithDescription("Number of open Postgres connections"),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: init metrics: %w", err)
	}
	inUse, err := meter.Int64ObservableGauge(
		monitoringmetrics.MetricNameWithSubsystem("postgres", "connections_in_use"),
		metric.WithDescription("Number of Postgres connections currently in use"),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: init metrics: %w", err)
	}
	idle, err := meter.Int64ObservableGauge(
		monitoringmetrics.MetricNameWithSubsystem("postgres", "connections_idle"),
		metric.WithDescription("Number of idle Postgres connections"),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: init metrics: %w", err)
	}
	maxConns, err := meter.Int64ObservableGauge(
		monitoringmetrics.MetricNameWithSubsystem("postgres", "max_open_connections"),
		metric.WithDescription("Configured Postgres connection pool size"),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: init metrics: %w", err)
	}
	attrs := metric.WithAttributes(attribute.String("pool", label))
	reg, err := meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			stats := pool.Stat()
			observer.ObserveInt64(open, int64(stats.TotalConns()), attrs)
			observer.ObserveInt64(inUse, int64(stats.AcquiredConns()), attrs)
			observer.ObserveInt64(idle, int64(stats.IdleConns()), attrs)
			observer.ObserveInt64(maxConns, int64(stats.MaxConns()), attrs)
			return nil
		},
		open, inUse, idle, maxConns,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: register metrics callback: %w", err)
	}
	return &poolMetrics{registration: reg}, nil
}

func (p *poolMetrics) unregister() {
	if p == nil || p.registration == nil {
		return
	}
	_ = p.registration.Unregister()
}

// poolLabel builds a stable label from host, port and database.
func poolLabel(cfg *pgxpool.Config) string {
	if cfg == nil || cfg.ConnConfig == nil {
		return defaultPoolLabel
	}
	raw := []string{cfg.ConnConfig.Host, fmt.Sprint(cfg.ConnConfig.Port), cfg.ConnConfig.Database}
	parts := make([]string, 0, len(raw))
	for _, c := range raw {
		if s := sanitizeLabelComponent(c); s != "" && s != "0" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return defaultPoolLabel
	}
	return strings.Join(parts, "-")
}

func sanitizeLabelComponent(component string) string {
	lower := strings.ToLower(strings.TrimSpace(component))
	var builder strings.Builder
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.', r == ':':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}
	return strings.Trim(builder.String(), "_")
}
