package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	RepeatWorkflowName = "repeat_workflow"
	RepeatActivityName = "repeat_activity"
	DefaultTaskQueue   = "repeat-task-queue"
)

const (
	defaultRepeatInterval = 5 * time.Second
	defaultRepeatTotal    = 60 * time.Second
	repeatStartToClose    = 70 * time.Second
)

// Activities holds the repeat activity. Interval and Total are fields so
// tests can shrink them.
type Activities struct {
	Interval time.Duration
	Total    time.Duration
}

func NewActivities() *Activities {
	return &Activities{Interval: defaultRepeatInterval, Total: defaultRepeatTotal}
}

// Repeat ticks every Interval until Total has elapsed, heartbeating the
// elapsed seconds.
func (a *Activities) Repeat(ctx context.Context) (string, error) {
	log := activity.GetLogger(ctx)
	interval, total := a.Interval, a.Total
	if interval <= 0 {
		interval = defaultRepeatInterval
	}
	log.Info("Starting repeat activity", "interval", interval, "total", total)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var elapsed time.Duration
	for elapsed < total {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			elapsed += interval
			activity.RecordHeartbeat(ctx, elapsed.Seconds())
			log.Info("Repeat tick", "elapsed_seconds", int(elapsed.Seconds()))
		}
	}
	return fmt.Sprintf("Done after %d seconds", int(elapsed.Seconds())), nil
}

// RepeatWorkflow runs the repeat activity once. An activity failure fails the
// workflow so the engine reports FAILED.
func RepeatWorkflow(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)
	logger.Debug("Starting repeat workflow")
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: repeatStartToClose,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 1,
		},
	})
	var result string
	if err := workflow.ExecuteActivity(ctx, RepeatActivityName).Get(ctx, &result); err != nil {
		logger.Warn("Repeat activity failed", "error", err)
		return err
	}
	logger.Info("Repeat activity completed", "result", result)
	return nil
}
