package reconciler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/compozy/executor/engine/execution"
	"github.com/compozy/executor/engine/execution/testutil"
	"github.com/compozy/executor/engine/reconciler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newExecService(repo execution.Repository, engine execution.Engine) *execution.Service {
	return execution.NewService(repo, engine, execution.Config{
		TaskQueue:    "repeat-task-queue",
		WorkflowType: "repeat_workflow",
	})
}

func statusOf(t *testing.T, repo *testutil.InMemoryRepo, id string) execution.Status {
	t.Helper()
	rec, err := repo.FindByID(t.Context(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec.Status
}

func incompleteIDs(t *testing.T, svc *execution.Service) []string {
	t.Helper()
	list, err := svc.ListIncomplete(t.Context())
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestReconciler_Tick(t *testing.T) {
	t.Run("Should update siblings when the engine is unreachable for one execution", func(t *testing.T) {
		repo := testutil.NewInMemoryRepo(
			testutil.Running("a", "wf-a", "run-a"),
			testutil.Running("b", "wf-b", "run-b"),
			testutil.Running("c", "wf-c", "run-c"),
		)
		engine := &testutil.MockEngine{}
		engine.On("DescribeExecution", mock.Anything, "wf-a", "run-a").Return(execution.RemoteCompleted, nil)
		engine.On("DescribeExecution", mock.Anything, "wf-b", "run-b").
			Return(execution.RemoteStatus(""), execution.ErrEngineUnavailable)
		engine.On("DescribeExecution", mock.Anything, "wf-c", "run-c").Return(execution.RemoteFailed, nil)
		svc := newExecService(repo, engine)
		r := reconciler.New(reconciler.Config{Concurrency: 2}, svc)

		summary := r.Tick(t.Context())
		assert.Equal(t, 3, summary.Candidates)
		assert.Equal(t, 2, summary.Outcomes[execution.OutcomeUpdated])
		assert.Equal(t, 1, summary.Outcomes[execution.OutcomeEngineUnavailable])
		assert.NoError(t, summary.Err)
		assert.Equal(t, execution.StatusComplete, statusOf(t, repo, "a"))
		assert.Equal(t, execution.StatusRunning, statusOf(t, repo, "b"))
		assert.Equal(t, execution.StatusFailed, statusOf(t, repo, "c"))
		assert.Equal(t, []string{"b"}, incompleteIDs(t, svc))
	})
	t.Run("Should keep a RUNNING execution in the incomplete set", func(t *testing.T) {
		repo := testutil.NewInMemoryRepo(testutil.Running("a", "wf-a", "run-a"))
		engine := &testutil.MockEngine{}
		engine.On("DescribeExecution", mock.Anything, "wf-a", "run-a").Return(execution.RemoteRunning, nil)
		svc := newExecService(repo, engine)

		summary := reconciler.New(reconciler.Config{}, svc).Tick(t.Context())
		assert.Equal(t, 1, summary.Outcomes[execution.OutcomeUnchanged])
		assert.Equal(t, execution.StatusRunning, statusOf(t, repo, "a"))
		assert.Equal(t, []string{"a"}, incompleteIDs(t, svc))
	})
	t.Run("Should skip a record deleted while it was polled", func(t *testing.T) {
		repo := testutil.NewInMemoryRepo(testutil.Running("a", "wf-a", "run-a"))
		engine := &testutil.MockEngine{}
		engine.On("DescribeExecution", mock.Anything, "wf-a", "run-a").
			Run(func(mock.Arguments) {
				_, err := repo.Delete(context.Background(), "a")
				assert.NoError(t, err)
			}).
			Return(execution.RemoteCompleted, nil)
		svc := newExecService(repo, engine)
		r := reconciler.New(reconciler.Config{}, svc)

		summary := r.Tick(t.Context())
		assert.Equal(t, 1, summary.Outcomes[execution.OutcomeDeleted])
		assert.Equal(t, 0, repo.Len())
		next := r.Tick(t.Context())
		assert.Equal(t, 0, next.Candidates)
		assert.NoError(t, next.Err)
	})
	t.Run("Should stop polling once a record reaches a terminal status", func(t *testing.T) {
		repo := testutil.NewInMemoryRepo(testutil.Running("a", "wf-a", "run-a"))
		engine := &testutil.MockEngine{}
		engine.On("DescribeExecution", mock.Anything, "wf-a", "run-a").Return(execution.RemoteTimedOut, nil).Once()
		svc := newExecService(repo, engine)
		r := reconciler.New(reconciler.Config{}, svc)

		r.Tick(t.Context())
		second := r.Tick(t.Context())
		assert.Equal(t, 0, second.Candidates)
		assert.Equal(t, execution.StatusTimedOut, statusOf(t, repo, "a"))
		engine.AssertExpectations(t)
	})
	t.Run("Should report a listing failure without reconciling", func(t *testing.T) {
		svc := &stubService{listErr: errors.New("db down")}
		summary := reconciler.New(reconciler.Config{}, svc).Tick(t.Context())
		assert.EqualError(t, summary.Err, "db down")
		assert.Zero(t, svc.calls.Load())
	})
	t.Run("Should bound each call with the configured timeout", func(t *testing.T) {
		svc := &stubService{pending: []*execution.Execution{testutil.Running("a", "wf-a", "run-a")}}
		svc.reconcile = func(ctx context.Context, exec *execution.Execution) (*execution.ReconcileResult, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return &execution.ReconcileResult{Execution: exec, Outcome: execution.OutcomeUnchanged}, nil
		}
		reconciler.New(reconciler.Config{CallTimeout: time.Second}, svc).Tick(t.Context())
		assert.Equal(t, int32(1), svc.calls.Load())
	})
	t.Run("Should report the tick duration in the returned summary", func(t *testing.T) {
		base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		calls := 0
		clock := func() time.Time {
			calls++
			return base.Add(time.Duration(calls) * time.Second)
		}
		svc := &stubService{pending: []*execution.Execution{testutil.Running("a", "wf-a", "run-a")}}
		summary := reconciler.New(reconciler.Config{}, svc, reconciler.WithClock(clock)).Tick(t.Context())
		assert.Equal(t, time.Second, summary.Duration)
		skipped := reconciler.New(
			reconciler.Config{},
			&stubService{},
			reconciler.WithClock(clock),
			reconciler.WithLease(fixedLease{held: false}),
		).Tick(t.Context())
		assert.True(t, skipped.Skipped)
		assert.Equal(t, time.Second, skipped.Duration)
	})
}

func TestReconciler_Lease(t *testing.T) {
	t.Run("Should skip the tick while another replica holds the lease", func(t *testing.T) {
		svc := &stubService{}
		r := reconciler.New(reconciler.Config{}, svc, reconciler.WithLease(fixedLease{held: false}))
		summary := r.Tick(t.Context())
		assert.True(t, summary.Skipped)
		assert.Zero(t, svc.lists.Load())
	})
	t.Run("Should reconcile when the lease is held", func(t *testing.T) {
		svc := &stubService{}
		r := reconciler.New(reconciler.Config{}, svc, reconciler.WithLease(fixedLease{held: true}))
		assert.False(t, r.Tick(t.Context()).Skipped)
		assert.Equal(t, int32(1), svc.lists.Load())
	})
	t.Run("Should reconcile anyway when the lease backend fails", func(t *testing.T) {
		svc := &stubService{}
		r := reconciler.New(reconciler.Config{}, svc, reconciler.WithLease(fixedLease{err: errors.New("redis down")}))
		assert.False(t, r.Tick(t.Context()).Skipped)
		assert.Equal(t, int32(1), svc.lists.Load())
	})
}

func TestReconciler_Run(t *testing.T) {
	t.Run("Should tick immediately and on every interval until canceled", func(t *testing.T) {
		svc := &stubService{}
		r := reconciler.New(reconciler.Config{Interval: 10 * time.Millisecond}, svc)
		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)
		go func() { done <- r.Run(ctx) }()
		assert.Eventually(t, func() bool { return svc.lists.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})
}

func TestReconciler_Metrics(t *testing.T) {
	t.Run("Should count ticks and outcomes", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		svc := &stubService{pending: []*execution.Execution{
			testutil.Running("a", "wf-a", "run-a"),
			testutil.Running("b", "wf-b", "run-b"),
		}}
		r := reconciler.New(reconciler.Config{}, svc, reconciler.WithMeter(provider.Meter("test")))
		r.Tick(t.Context())

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(t.Context(), &rm))
		var ticks, unchanged int64
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					continue
				}
				for _, dp := range sum.DataPoints {
					switch m.Name {
					case "executor_reconciler_ticks_total":
						ticks += dp.Value
					case "executor_reconciler_executions_total":
						if v, ok := dp.Attributes.Value(attribute.Key("outcome")); ok && v.AsString() == "unchanged" {
							unchanged += dp.Value
						}
					}
				}
			}
		}
		assert.Equal(t, int64(1), ticks)
		assert.Equal(t, int64(2), unchanged)
	})
}

type stubService struct {
	pending   []*execution.Execution
	listErr   error
	reconcile func(context.Context, *execution.Execution) (*execution.ReconcileResult, error)
	lists     atomic.Int32
	calls     atomic.Int32
}

func (s *stubService) ListIncomplete(context.Context) ([]*execution.Execution, error) {
	s.lists.Add(1)
	return s.pending, s.listErr
}

func (s *stubService) ReconcileOne(ctx context.Context, exec *execution.Execution) (*execution.ReconcileResult, error) {
	s.calls.Add(1)
	if s.reconcile != nil {
		return s.reconcile(ctx, exec)
	}
	return &execution.ReconcileResult{Execution: exec, Outcome: execution.OutcomeUnchanged}, nil
}

type fixedLease struct {
	held bool
	err  error
}

func (l fixedLease) Acquire(context.Context) (bool, error) { return l.held, l.err }
