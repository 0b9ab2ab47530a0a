package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/compozy/executor/engine/execution"
	"github.com/compozy/executor/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultConcurrency = 8
)

// Service is the slice of the execution service the loop depends on.
type Service interface {
	ListIncomplete(ctx context.Context) ([]*execution.Execution, error)
	ReconcileOne(ctx context.Context, exec *execution.Execution) (*execution.ReconcileResult, error)
}

// Lease gates a tick across replicas. Acquire reports whether this process
// may run the tick.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
}

type Config struct {
	Interval    time.Duration
	Concurrency int
	// CallTimeout bounds each ReconcileOne call. Zero means no bound.
	CallTimeout time.Duration
}

// TickSummary describes one reconciliation pass.
type TickSummary struct {
	Candidates int
	Outcomes   map[execution.Outcome]int
	Skipped    bool
	Duration   time.Duration
	Err        error
}

type Reconciler struct {
	cfg     Config
	svc     Service
	lease   Lease
	meter   metric.Meter
	metrics *tickMetrics
	now     func() time.Time
}

type Option func(*Reconciler)

// WithLease makes every tick acquire l first; a tick is skipped while another
// owner holds it.
func WithLease(l Lease) Option {
	return func(r *Reconciler) { r.lease = l }
}

func WithMeter(m metric.Meter) Option {
	return func(r *Reconciler) { r.meter = m }
}

// WithClock overrides the clock used to time ticks.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func New(cfg Config, svc Service, opts ...Option) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	r := &Reconciler{cfg: cfg, svc: svc, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.meter == nil {
		r.meter = otel.GetMeterProvider().Meter("executor/reconciler")
	}
	r.metrics = newTickMetrics(r.meter)
	return r
}

// Run performs a pass immediately, then one per interval until ctx is done.
// Missed ticks are dropped, so passes never overlap.
func (r *Reconciler) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).With("component", "reconciler")
	ctx = logger.ContextWithLogger(ctx, log)
	log.Info("Reconciler started", "interval", r.cfg.Interval, "concurrency", r.cfg.Concurrency)
	r.Tick(ctx)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("Reconciler stopped")
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass. Failures are per execution: each one is
// logged and counted, and never stops its siblings.
func (r *Reconciler) Tick(ctx context.Context) (summary TickSummary) {
	log := logger.FromContext(ctx)
	start := r.now()
	summary = TickSummary{Outcomes: make(map[execution.Outcome]int)}
	defer func() {
		summary.Duration = r.now().Sub(start)
		r.metrics.recordTick(ctx, &summary)
	}()
	if r.lease != nil {
		held, err := r.lease.Acquire(ctx)
		switch {
		case err != nil:
			log.Warn("Failed to acquire reconciliation lease, reconciling anyway", "error", err)
		case !held:
			log.Debug("Reconciliation lease held by another replica, skipping tick")
			summary.Skipped = true
			return summary
		}
	}
	pending, err := r.svc.ListIncomplete(ctx)
	if err != nil {
		log.Error("Failed to list incomplete executions", "error", err)
		summary.Err = err
		return summary
	}
	summary.Candidates = len(pending)
	var mu sync.Mutex
	var group errgroup.Group
	group.SetLimit(r.cfg.Concurrency)
	for _, exec := range pending {
		group.Go(func() error {
			outcome := r.reconcile(ctx, exec)
			mu.Lock()
			summary.Outcomes[outcome]++
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	if summary.Candidates > 0 {
		log.Debug("Reconciliation tick finished", "candidates", summary.Candidates, "outcomes", summary.Outcomes)
	}
	return summary
}

func (r *Reconciler) reconcile(ctx context.Context, exec *execution.Execution) execution.Outcome {
	log := logger.FromContext(ctx).With(
		"execution_id", exec.ID,
		"workflow_id", exec.WorkflowID,
		"run_id", exec.RunID,
	)
	callCtx := ctx
	if r.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.cfg.CallTimeout)
		defer cancel()
	}
	res, err := r.svc.ReconcileOne(callCtx, exec)
	if res == nil {
		log.Error("Reconciliation returned no result", "error", err)
		return execution.OutcomeStorageError
	}
	switch res.Outcome {
	case execution.OutcomeUpdated:
		log.Info("Execution status updated", "from", res.Previous, "to", res.Current)
	case execution.OutcomeRunNotFound:
		log.Info("Engine no longer knows the run", "from", res.Previous, "to", res.Current)
	case execution.OutcomeDeleted:
		log.Info("Execution deleted during reconciliation")
	case execution.OutcomeEngineUnavailable:
		log.Warn("Engine unavailable, keeping previous status", "status", res.Previous, "error", err)
	case execution.OutcomeStorageError:
		log.Error("Failed to store reconciled status", "error", err)
	default:
		log.Debug("Execution status unchanged", "status", res.Current)
	}
	return res.Outcome
}
