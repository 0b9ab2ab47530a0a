package interceptor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

func okWorkflow(_ workflow.Context) error { return nil }

func failingWorkflow(_ workflow.Context) error {
	return temporal.NewApplicationError("boom", "test")
}

func sumValue(t *testing.T, rm *metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func runWithMetrics(t *testing.T, wf any) (*metricdata.ResourceMetrics, error) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.SetWorkerOptions(worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{TemporalMetrics(t.Context(), provider.Meter("test"))},
	})
	env.RegisterWorkflow(wf)
	env.ExecuteWorkflow(wf)
	require.True(t, env.IsWorkflowCompleted())
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))
	return &rm, env.GetWorkflowError()
}

func TestTemporalMetrics(t *testing.T) {
	t.Run("Should count started and completed workflows", func(t *testing.T) {
		rm, err := runWithMetrics(t, okWorkflow)
		require.NoError(t, err)
		assert.Equal(t, int64(1), sumValue(t, rm, "executor_temporal_workflow_started_total"))
		assert.Equal(t, int64(1), sumValue(t, rm, "executor_temporal_workflow_completed_total"))
		assert.Equal(t, int64(0), sumValue(t, rm, "executor_temporal_workflow_failed_total"))
	})
	t.Run("Should count failed workflows", func(t *testing.T) {
		rm, err := runWithMetrics(t, failingWorkflow)
		require.Error(t, err)
		assert.Equal(t, int64(1), sumValue(t, rm, "executor_temporal_workflow_failed_total"))
		assert.Equal(t, int64(0), sumValue(t, rm, "executor_temporal_workflow_completed_total"))
	})
	t.Run("Should return a no-op interceptor for a nil meter", func(t *testing.T) {
		_, ok := TemporalMetrics(t.Context(), nil).(*interceptor.WorkerInterceptorBase)
		assert.True(t, ok)
	})
}

func TestClassifyWorkflowError(t *testing.T) {
	t.Run("Should label canceled, timeout and generic failures", func(t *testing.T) {
		label, _ := classifyWorkflowError(temporal.NewCanceledError())
		assert.Equal(t, "canceled", label)
		label, _ = classifyWorkflowError(temporal.NewTimeoutError(enums.TIMEOUT_TYPE_START_TO_CLOSE, nil))
		assert.Equal(t, "timeout", label)
		label, _ = classifyWorkflowError(errors.New("boom"))
		assert.Equal(t, "failed", label)
	})
}
