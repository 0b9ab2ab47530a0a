package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/compozy/executor/engine/infra/server"
	"github.com/compozy/executor/engine/infra/temporal"
	"github.com/compozy/executor/pkg/config"
	"github.com/spf13/cobra"
)

// WorkerCmd runs the repeat workflow worker on its own.
func WorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the repeat workflow worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg := config.FromContext(ctx)
			client, err := temporal.Dial(ctx, server.TemporalConfig(&cfg.Temporal))
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer client.Close()
			return temporal.NewWorker(client, cfg.Temporal.TaskQueue, temporal.NewActivities()).Run(ctx)
		},
	}
	addTemporalFlags(cmd)
	return cmd
}
