package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/compozy/executor/engine/execution"
	"github.com/compozy/executor/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteTestConfig(t *testing.T) *config.DatabaseConfig {
	t.Helper()
	cfg := config.Default().Database
	cfg.Path = filepath.Join(t.TempDir(), "executor.db")
	return &cfg
}

func TestNewProvider(t *testing.T) {
	t.Run("Should open and migrate the sqlite store", func(t *testing.T) {
		p, err := NewProvider(t.Context(), sqliteTestConfig(t))
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close(context.Background()) })
		assert.Equal(t, config.DriverSQLite, p.Driver())
		require.NoError(t, p.HealthCheck(t.Context()))

		repo := p.NewExecutionRepo()
		rec := &execution.Execution{
			ID:         uuid.NewString(),
			WorkflowID: "wf-1",
			RunID:      "run-1",
			Status:     execution.StatusRunning,
			CreatedAt:  time.Now().UTC(),
		}
		require.NoError(t, repo.Insert(t.Context(), rec))
		all, err := repo.ListAll(t.Context())
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
	t.Run("Should let Migrate prepare a store used later without auto migrate", func(t *testing.T) {
		cfg := sqliteTestConfig(t)
		cfg.AutoMigrate = false
		require.NoError(t, Migrate(t.Context(), cfg))
		p, err := NewProvider(t.Context(), cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close(context.Background()) })
		_, err = p.NewExecutionRepo().ListAll(t.Context())
		assert.NoError(t, err)
	})
	t.Run("Should require a connection string for postgres", func(t *testing.T) {
		cfg := config.Default().Database
		cfg.Driver = config.DriverPostgres
		_, err := NewProvider(t.Context(), &cfg)
		assert.ErrorContains(t, err, "conn_string")
	})
	t.Run("Should reject unknown drivers", func(t *testing.T) {
		cfg := config.Default().Database
		cfg.Driver = "mysql"
		_, err := NewProvider(t.Context(), &cfg)
		assert.Error(t, err)
	})
}
