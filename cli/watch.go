package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/compozy/executor/engine/execution"
	"github.com/compozy/executor/engine/infra/server"
	"github.com/compozy/executor/engine/infra/temporal"
	"github.com/compozy/executor/pkg/config"
	"github.com/compozy/executor/pkg/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const defaultWatchInterval = time.Second

// WatchCmd starts one run directly on the engine and polls it until it
// reaches a terminal status. No local record is written.
func WatchCmd() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Start a repeat workflow and poll it until it finishes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg := config.FromContext(ctx)
			client, err := temporal.Dial(ctx, server.TemporalConfig(&cfg.Temporal))
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer client.Close()
			status, err := watchRun(ctx, temporal.NewFacade(client), &cfg.Temporal, every)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
	cmd.Flags().DurationVar(&every, "every", defaultWatchInterval, "Polling interval")
	addTemporalFlags(cmd)
	return cmd
}

func watchRun(
	ctx context.Context,
	engine execution.Engine,
	cfg *config.TemporalConfig,
	every time.Duration,
) (execution.Status, error) {
	ref, err := engine.StartExecution(ctx, execution.StartRequest{
		WorkflowID:   "wf-" + uuid.NewString(),
		TaskQueue:    cfg.TaskQueue,
		WorkflowType: cfg.WorkflowType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start workflow: %w", err)
	}
	logger.FromContext(ctx).Info("Started workflow", "workflow_id", ref.WorkflowID, "run_id", ref.RunID)
	return pollUntilTerminal(ctx, engine, ref, every)
}

// pollUntilTerminal describes ref every interval until the mapped status is
// terminal. Describe failures are logged and retried on the next poll.
func pollUntilTerminal(
	ctx context.Context,
	engine execution.Engine,
	ref execution.RunRef,
	every time.Duration,
) (execution.Status, error) {
	log := logger.FromContext(ctx).With("workflow_id", ref.WorkflowID, "run_id", ref.RunID)
	if every <= 0 {
		every = defaultWatchInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		remote, err := engine.DescribeExecution(ctx, ref.WorkflowID, ref.RunID)
		status := execution.MapRemoteStatus(remote)
		switch {
		case errors.Is(err, execution.ErrRunNotFound):
			log.Info("Engine does not know the run", "status", execution.StatusUnknown)
		case err != nil:
			log.Warn("Failed to describe workflow", "error", err)
		default:
			log.Info("Workflow status", "status", status)
			if status.IsTerminal() {
				return status, nil
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
