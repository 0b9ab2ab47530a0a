package temporal

import (
	"context"
	"fmt"

	"github.com/compozy/executor/pkg/logger"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

type registry interface {
	RegisterWorkflowWithOptions(w any, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a any, options activity.RegisterOptions)
}

// Register binds the repeat workflow and activity under their public names.
func Register(r registry, acts *Activities) {
	r.RegisterWorkflowWithOptions(RepeatWorkflow, workflow.RegisterOptions{Name: RepeatWorkflowName})
	r.RegisterActivityWithOptions(acts.Repeat, activity.RegisterOptions{Name: RepeatActivityName})
}

// Worker polls one task queue for the repeat workflow. The SDK worker is
// built once the engine is reachable.
type Worker struct {
	client       client.Client
	taskQueue    string
	acts         *Activities
	interceptors []interceptor.WorkerInterceptor
}

func NewWorker(
	c client.Client,
	taskQueue string,
	acts *Activities,
	interceptors ...interceptor.WorkerInterceptor,
) *Worker {
	if acts == nil {
		acts = NewActivities()
	}
	return &Worker{client: c, taskQueue: taskQueue, acts: acts, interceptors: interceptors}
}

// Run waits until the engine answers a health check, starts polling and
// blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	if err := w.waitForEngine(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	sdkWorker := worker.New(w.client, w.taskQueue, worker.Options{Interceptors: w.interceptors})
	Register(sdkWorker, w.acts)
	if err := sdkWorker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	log.Info("Worker running", "task_queue", w.taskQueue)
	<-ctx.Done()
	sdkWorker.Stop()
	log.Info("Worker stopped", "task_queue", w.taskQueue)
	return nil
}

func (w *Worker) waitForEngine(ctx context.Context) error {
	log := logger.FromContext(ctx)
	backoff := retry.WithCappedDuration(dialBackoffMax, retry.NewExponential(dialBackoffBase))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if _, err := w.client.CheckHealth(ctx, &client.CheckHealthRequest{}); err != nil {
			log.Warn("Temporal not reachable, worker waiting", "task_queue", w.taskQueue, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
