package cli

import (
	"context"
	"fmt"

	"github.com/compozy/executor/pkg/config"
	"github.com/compozy/executor/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	defaultConfigFile = "executor.yaml"
	defaultEnvFile    = ".env"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "executor",
		Short:         "Track Temporal executions and keep their status in sync",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.String("config", defaultConfigFile, "Path to the YAML configuration file")
	flags.String("env-file", defaultEnvFile, "Path to the environment file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error, disabled)")
	flags.Bool("log-json", false, "Emit logs as JSON")
	flags.Bool("log-source", false, "Include caller information in logs")

	root.AddCommand(
		StartCmd(),
		WorkerCmd(),
		WatchCmd(),
		MigrateCmd(),
		ConfigCmd(),
	)
	return root
}

// SetupGlobalConfig loads the env file and configuration, builds the logger
// and attaches both to the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(ctx, config.NewYAMLProvider(configFile), config.NewCLIProvider(flagOverrides(cmd)))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-level") {
		logLevel = cfg.Runtime.LogLevel
	}
	log := logger.SetupLogger(logLevel, logJSON, logSource)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	return nil
}

// flagBindings maps command flags to configuration paths. Only flags the user
// set explicitly override lower layers.
var flagBindings = map[string]string{
	"host":        "server.host",
	"port":        "server.port",
	"db-driver":   "database.driver",
	"db-path":     "database.path",
	"db-conn":     "database.conn_string",
	"temporal":    "temporal.host_port",
	"namespace":   "temporal.namespace",
	"task-queue":  "temporal.task_queue",
	"no-worker":   "worker.enabled",
	"interval":    "reconciler.interval",
	"concurrency": "reconciler.concurrency",
	"redis":       "redis.addr",
}

func flagOverrides(cmd *cobra.Command) map[string]any {
	out := make(map[string]any)
	for name, path := range flagBindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		value := flag.Value.String()
		if name == "no-worker" {
			out[path] = value != "true"
			continue
		}
		out[path] = value
	}
	return out
}

func addTemporalFlags(cmd *cobra.Command) {
	cmd.Flags().String("temporal", "", "Temporal host:port")
	cmd.Flags().String("namespace", "", "Temporal namespace")
	cmd.Flags().String("task-queue", "", "Temporal task queue")
}

func addDatabaseFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-driver", "", "Database driver (postgres, sqlite)")
	cmd.Flags().String("db-path", "", "SQLite database path")
	cmd.Flags().String("db-conn", "", "Postgres connection string")
}
