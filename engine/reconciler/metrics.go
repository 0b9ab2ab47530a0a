package reconciler

import (
	"context"

	"github.com/compozy/executor/engine/infra/monitoring/metrics"
	"github.com/compozy/executor/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type tickMetrics struct {
	ticks      metric.Int64Counter
	executions metric.Int64Counter
	duration   metric.Float64Histogram
}

// newTickMetrics never fails; instruments that cannot be created stay nil
// and are skipped when recording.
func newTickMetrics(meter metric.Meter) *tickMetrics {
	log := logger.FromContext(context.Background())
	m := &tickMetrics{}
	var err error
	m.ticks, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("reconciler", "ticks_total"),
		metric.WithDescription("Reconciliation passes by result"),
	)
	if err != nil {
		log.Error("Failed to create reconciler ticks counter", "error", err)
	}
	m.executions, err = meter.Int64Counter(
		metrics.MetricNameWithSubsystem("reconciler", "executions_total"),
		metric.WithDescription("Reconciled executions by outcome"),
	)
	if err != nil {
		log.Error("Failed to create reconciler executions counter", "error", err)
	}
	m.duration, err = meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("reconciler", "tick_duration_seconds"),
		metric.WithDescription("Reconciliation pass latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.ReconcileDurationBuckets...),
	)
	if err != nil {
		log.Error("Failed to create reconciler duration histogram", "error", err)
	}
	return m
}

func (m *tickMetrics) recordTick(ctx context.Context, s *TickSummary) {
	ctx = context.WithoutCancel(ctx)
	result := "completed"
	switch {
	case s.Skipped:
		result = "skipped"
	case s.Err != nil:
		result = "list_failed"
	}
	if m.ticks != nil {
		m.ticks.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
	if m.executions != nil {
		for outcome, n := range s.Outcomes {
			m.executions.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", string(outcome))))
		}
	}
	if m.duration != nil && !s.Skipped {
		m.duration.Record(ctx, s.Duration.Seconds(), metric.WithAttributes(attribute.String("result", result)))
	}
}

