package cli

import (
	"fmt"

	"github.com/compozy/executor/engine/infra/server"
	"github.com/compozy/executor/pkg/config"
	"github.com/compozy/executor/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// StartCmd runs the API server with the reconciler and, unless disabled, the
// embedded worker.
func StartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"server"},
		Short:   "Start the executions API and status reconciler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			if cfg.Runtime.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			logger.FromContext(ctx).Info("Starting executor server",
				"address", cfg.Server.FullAddress(),
				"driver", cfg.Database.Driver,
				"temporal", cfg.Temporal.HostPort,
				"worker", cfg.Worker.Enabled,
			)
			srv, err := server.NewServer(ctx)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			return srv.Run()
		},
	}
	cmd.Flags().String("host", "", "Address to bind")
	cmd.Flags().Int("port", 0, "Port to bind")
	cmd.Flags().Bool("no-worker", false, "Do not run the embedded Temporal worker")
	cmd.Flags().Duration("interval", 0, "Reconciliation interval")
	cmd.Flags().Int("concurrency", 0, "Concurrent status checks per reconciliation pass")
	cmd.Flags().String("redis", "", "Redis address for the reconciliation lease")
	addTemporalFlags(cmd)
	addDatabaseFlags(cmd)
	return cmd
}
