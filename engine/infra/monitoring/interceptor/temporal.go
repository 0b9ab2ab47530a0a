package interceptor

import (
	"context"
	"errors"

	"github.com/compozy/executor/engine/infra/monitoring/metrics"
	"github.com/compozy/executor/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

type workflowInstruments struct {
	started   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

func newWorkflowInstruments(meter metric.Meter) (*workflowInstruments, error) {
	started, err := meter.Int64Counter(
		metrics.MetricNameWithSubsystem("temporal", "workflow_started_total"),
		metric.WithDescription("Started workflows"),
	)
	if err != nil {
		return nil, err
	}
	completed, err := meter.Int64Counter(
		metrics.MetricNameWithSubsystem("temporal", "workflow_completed_total"),
		metric.WithDescription("Completed workflows"),
	)
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter(
		metrics.MetricNameWithSubsystem("temporal", "workflow_failed_total"),
		metric.WithDescription("Failed workflows"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		metrics.MetricNameWithSubsystem("temporal", "workflow_duration_seconds"),
		metric.WithDescription("Workflow execution time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(metrics.WorkflowDurationBuckets...),
	)
	if err != nil {
		return nil, err
	}
	return &workflowInstruments{started: started, completed: completed, failed: failed, duration: duration}, nil
}

// TemporalMetrics creates a worker interceptor that records workflow
// outcomes. A nil meter yields a no-op interceptor.
func TemporalMetrics(ctx context.Context, meter metric.Meter) interceptor.WorkerInterceptor {
	log := logger.FromContext(ctx)
	if meter == nil {
		log.Warn("TemporalMetrics called with nil meter, returning no-op interceptor")
		return &interceptor.WorkerInterceptorBase{}
	}
	inst, err := newWorkflowInstruments(meter)
	if err != nil {
		log.Error("Failed to create workflow metric instruments", "error", err, "component", "temporal_metrics")
		return &interceptor.WorkerInterceptorBase{}
	}
	return &metricsInterceptor{inst: inst, baseCtx: context.WithoutCancel(ctx)}
}

type metricsInterceptor struct {
	interceptor.WorkerInterceptorBase
	inst    *workflowInstruments
	baseCtx context.Context
}

func (m *metricsInterceptor) InterceptWorkflow(
	_ workflow.Context,
	next interceptor.WorkflowInboundInterceptor,
) interceptor.WorkflowInboundInterceptor {
	return &workflowInboundInterceptor{
		WorkflowInboundInterceptorBase: interceptor.WorkflowInboundInterceptorBase{Next: next},
		inst:                           m.inst,
		baseCtx:                        m.baseCtx,
	}
}

type workflowInboundInterceptor struct {
	interceptor.WorkflowInboundInterceptorBase
	inst    *workflowInstruments
	baseCtx context.Context
}

// ExecuteWorkflow records metrics for workflow execution. Replays are not counted.
func (w *workflowInboundInterceptor) ExecuteWorkflow(
	ctx workflow.Context,
	in *interceptor.ExecuteWorkflowInput,
) (any, error) {
	if workflow.IsReplaying(ctx) {
		return w.Next.ExecuteWorkflow(ctx, in)
	}
	start := workflow.Now(ctx)
	info := workflow.GetInfo(ctx)
	workflowType := info.WorkflowType.Name
	w.inst.started.Add(w.baseCtx, 1, metric.WithAttributes(attribute.String("workflow_type", workflowType)))
	result, err := w.Next.ExecuteWorkflow(ctx, in)
	w.recordOutcome(workflow.Now(ctx).Sub(start).Seconds(), workflowType, info, err)
	return result, err
}

func (w *workflowInboundInterceptor) recordOutcome(
	duration float64,
	workflowType string,
	info *workflow.Info,
	err error,
) {
	label := "completed"
	if err != nil {
		var message string
		label, message = classifyWorkflowError(err)
		logger.FromContext(w.baseCtx).Debug(
			message,
			"workflow_type", workflowType,
			"workflow_id", info.WorkflowExecution.ID,
			"error", err,
		)
	}
	attrs := metric.WithAttributes(
		attribute.String("workflow_type", workflowType),
		attribute.String("result", label),
	)
	w.inst.duration.Record(w.baseCtx, duration, attrs)
	if err != nil {
		w.inst.failed.Add(w.baseCtx, 1, attrs)
		return
	}
	w.inst.completed.Add(w.baseCtx, 1, metric.WithAttributes(attribute.String("workflow_type", workflowType)))
}

// classifyWorkflowError maps workflow errors to result labels and log messages.
func classifyWorkflowError(err error) (string, string) {
	switch {
	case temporal.IsCanceledError(err) || errors.Is(err, workflow.ErrCanceled):
		return "canceled", "Workflow canceled"
	case temporal.IsTimeoutError(err):
		return "timeout", "Workflow timed out"
	default:
		return "failed", "Workflow failed"
	}
}
