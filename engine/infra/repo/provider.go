package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/compozy/executor/engine/execution"
	"github.com/compozy/executor/engine/infra/postgres"
	"github.com/compozy/executor/engine/infra/sqlite"
	"github.com/compozy/executor/pkg/config"
	"github.com/compozy/executor/pkg/logger"
)

// Provider exposes the execution repository of the configured driver. It
// returns interfaces rather than driver-specific types.
type Provider struct {
	driver string
	repo   execution.Repository
	health func(context.Context) error
	close  func(context.Context) error
}

// NewProvider opens the configured store and applies migrations when
// auto_migrate is set.
func NewProvider(ctx context.Context, cfg *config.DatabaseConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	log := logger.FromContext(ctx)
	switch cfg.Driver {
	case config.DriverPostgres:
		if strings.TrimSpace(cfg.ConnString) == "" {
			return nil, fmt.Errorf("postgres driver requires database.conn_string")
		}
		if cfg.AutoMigrate {
			log.Info("Running database migrations", "driver", cfg.Driver)
			if err := postgres.ApplyMigrations(ctx, cfg.ConnString); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		store, err := postgres.NewStore(ctx, postgresConfig(cfg))
		if err != nil {
			return nil, err
		}
		return &Provider{
			driver: cfg.Driver,
			repo:   postgres.NewExecutionRepo(store.Pool()),
			health: store.HealthCheck,
			close:  store.Close,
		}, nil
	case config.DriverSQLite:
		store, err := sqlite.NewStore(ctx, sqliteConfig(cfg))
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			log.Info("Running database migrations", "driver", cfg.Driver)
			if err := sqlite.ApplyMigrations(ctx, store.DB()); err != nil {
				_ = store.Close(ctx)
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		return &Provider{
			driver: cfg.Driver,
			repo:   sqlite.NewExecutionRepo(store.DB()),
			health: store.HealthCheck,
			close:  store.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate applies the embedded migrations of the configured driver and
// releases every connection it opened.
func Migrate(ctx context.Context, cfg *config.DatabaseConfig) error {
	if cfg == nil {
		return fmt.Errorf("database configuration is required")
	}
	migrateCfg := *cfg
	migrateCfg.AutoMigrate = true
	p, err := NewProvider(ctx, &migrateCfg)
	if err != nil {
		return err
	}
	return p.Close(ctx)
}

func (p *Provider) Driver() string { return p.driver }

// NewExecutionRepo returns the execution repository.
func (p *Provider) NewExecutionRepo() execution.Repository { return p.repo }

func (p *Provider) HealthCheck(ctx context.Context) error { return p.health(ctx) }

func (p *Provider) Close(ctx context.Context) error { return p.close(ctx) }

func postgresConfig(cfg *config.DatabaseConfig) *postgres.Config {
	return &postgres.Config{
		ConnString:      cfg.ConnString,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
}

func sqliteConfig(cfg *config.DatabaseConfig) *sqlite.Config {
	return &sqlite.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		BusyTimeout:     cfg.BusyTimeout,
	}
}
