package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadWithEnv(t *testing.T, environ []string, sources ...Source) (*Config, error) {
	t.Helper()
	l := newLoader()
	l.environ = func() []string { return environ }
	return l.load(sources)
}

func TestLoad_Defaults(t *testing.T) {
	t.Run("Should load valid defaults when no source overrides them", func(t *testing.T) {
		cfg, err := loadWithEnv(t, nil)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:8080", cfg.Server.FullAddress())
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, "repeat-task-queue", cfg.Temporal.TaskQueue)
		assert.Equal(t, "repeat_workflow", cfg.Temporal.WorkflowType)
		assert.Equal(t, 5*time.Second, cfg.Reconciler.Interval)
		assert.Equal(t, 8, cfg.Reconciler.Concurrency)
		assert.True(t, cfg.Worker.Enabled)
	})
}

func TestLoad_Environment(t *testing.T) {
	t.Run("Should apply canonical environment variables", func(t *testing.T) {
		cfg, err := loadWithEnv(t, []string{
			"EXECUTOR_SERVER_PORT=9090",
			"EXECUTOR_RECONCILER_INTERVAL=250ms",
			"EXECUTOR_DB_DRIVER=postgres",
			"EXECUTOR_WORKER_ENABLED=false",
		})
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 250*time.Millisecond, cfg.Reconciler.Interval)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.False(t, cfg.Worker.Enabled)
	})
	t.Run("Should accept legacy variable names", func(t *testing.T) {
		cfg, err := loadWithEnv(t, []string{
			"TEMPORAL_URL=http://temporal:7233",
			"SERVER_URL=0.0.0.0:8081",
			"DATABASE_URL=postgres://u:p@db:5432/exec",
		})
		require.NoError(t, err)
		assert.Equal(t, "http://temporal:7233", cfg.Temporal.HostPort)
		assert.Equal(t, "0.0.0.0:8081", cfg.Server.FullAddress())
		assert.Equal(t, "postgres://u:p@db:5432/exec", cfg.Database.ConnString)
	})
	t.Run("Should prefer canonical names over aliases", func(t *testing.T) {
		cfg, err := loadWithEnv(t, []string{
			"EXECUTOR_TEMPORAL_HOST_PORT=canonical:7233",
			"TEMPORAL_URL=alias:7233",
		})
		require.NoError(t, err)
		assert.Equal(t, "canonical:7233", cfg.Temporal.HostPort)
	})
	t.Run("Should ignore unrelated variables", func(t *testing.T) {
		cfg, err := loadWithEnv(t, []string{"SERVER=oops", "HOME=/root"})
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
	})
	t.Run("Should reject invalid values", func(t *testing.T) {
		_, err := loadWithEnv(t, []string{"EXECUTOR_DB_DRIVER=mysql"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})
}

func TestLoad_YAML(t *testing.T) {
	t.Run("Should merge YAML values over defaults and keep the rest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "executor.yaml")
		content := "reconciler:\n  interval: 2s\n  concurrency: 3\ntemporal:\n  namespace: prod\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		cfg, err := loadWithEnv(t, nil, NewYAMLProvider(path))
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, cfg.Reconciler.Interval)
		assert.Equal(t, 3, cfg.Reconciler.Concurrency)
		assert.Equal(t, "prod", cfg.Temporal.Namespace)
		assert.Equal(t, "repeat-task-queue", cfg.Temporal.TaskQueue)
	})
	t.Run("Should treat a missing file as empty", func(t *testing.T) {
		cfg, err := loadWithEnv(t, nil, NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")))
		require.NoError(t, err)
		assert.Equal(t, "default", cfg.Temporal.Namespace)
	})
	t.Run("Should let environment override YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "executor.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0o600))
		cfg, err := loadWithEnv(t, []string{"EXECUTOR_SERVER_PORT=7001"}, NewYAMLProvider(path))
		require.NoError(t, err)
		assert.Equal(t, 7001, cfg.Server.Port)
	})
}

func TestLoad_CLI(t *testing.T) {
	t.Run("Should apply flag overrides by path", func(t *testing.T) {
		cfg, err := loadWithEnv(t, nil, NewCLIProvider(map[string]any{"database.path": "/tmp/x.db"}))
		require.NoError(t, err)
		assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	})
	t.Run("Should let flags override environment", func(t *testing.T) {
		cfg, err := loadWithEnv(
			t,
			[]string{"EXECUTOR_SERVER_PORT=7001"},
			NewCLIProvider(map[string]any{"server.port": 7002}),
		)
		require.NoError(t, err)
		assert.Equal(t, 7002, cfg.Server.Port)
	})
}

func TestEnvMappings(t *testing.T) {
	t.Run("Should expose canonical and alias bindings", func(t *testing.T) {
		found := map[string]EnvMapping{}
		for _, m := range GenerateEnvMappings() {
			found[m.EnvVar] = m
		}
		assert.Equal(t, "temporal.host_port", found["EXECUTOR_TEMPORAL_HOST_PORT"].ConfigPath)
		assert.False(t, found["EXECUTOR_TEMPORAL_HOST_PORT"].Alias)
		assert.Equal(t, "temporal.host_port", found["TEMPORAL_URL"].ConfigPath)
		assert.True(t, found["TEMPORAL_URL"].Alias)
	})
	t.Run("Should flag sensitive fields", func(t *testing.T) {
		assert.True(t, IsSensitive("redis.password"))
		assert.False(t, IsSensitive("redis.addr"))
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("Should ignore a missing env file", func(t *testing.T) {
		assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env")))
	})
	t.Run("Should load variables from the env file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("EXECUTOR_TEST_ONLY_VAR=loaded\n"), 0o600))
		t.Setenv("EXECUTOR_TEST_ONLY_VAR", "")
		require.NoError(t, os.Unsetenv("EXECUTOR_TEST_ONLY_VAR"))
		require.NoError(t, LoadEnvFile(path))
		assert.Equal(t, "loaded", os.Getenv("EXECUTOR_TEST_ONLY_VAR"))
	})
}

func TestFromContext(t *testing.T) {
	t.Run("Should return defaults when no config is attached", func(t *testing.T) {
		cfg := FromContext(t.Context())
		require.NotNil(t, cfg)
		assert.Equal(t, 8080, cfg.Server.Port)
	})
	t.Run("Should return the attached config", func(t *testing.T) {
		attached := Default()
		attached.Server.Port = 1234
		ctx := ContextWithConfig(t.Context(), attached)
		assert.Same(t, attached, FromContext(ctx))
	})
}
