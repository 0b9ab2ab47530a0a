package cli

import (
	"github.com/compozy/executor/engine/infra/repo"
	"github.com/compozy/executor/pkg/config"
	"github.com/compozy/executor/pkg/logger"
	"github.com/spf13/cobra"
)

// MigrateCmd applies the embedded schema migrations and exits.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the configured driver",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			if err := repo.Migrate(ctx, &cfg.Database); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("Migrations applied", "driver", cfg.Database.Driver)
			return nil
		},
	}
	addDatabaseFlags(cmd)
	return cmd
}
