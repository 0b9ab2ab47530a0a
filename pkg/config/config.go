package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the executor process.
type Config struct {
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Database   DatabaseConfig   `koanf:"database"   validate:"required"`
	Temporal   TemporalConfig   `koanf:"temporal"   validate:"required"`
	Reconciler ReconcilerConfig `koanf:"reconciler" validate:"required"`
	Worker     WorkerConfig     `koanf:"worker"`
	Redis      RedisConfig      `koanf:"redis"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	Runtime    RuntimeConfig    `koanf:"runtime"    validate:"required"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"             validate:"required"        env:"EXECUTOR_SERVER_HOST"`
	Port            int           `koanf:"port"             validate:"min=1,max=65535" env:"EXECUTOR_SERVER_PORT"`
	Address         string        `koanf:"address"                                     env:"EXECUTOR_SERVER_ADDRESS,SERVER_URL"`
	ReadTimeout     time.Duration `koanf:"read_timeout"                                env:"EXECUTOR_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `koanf:"write_timeout"                               env:"EXECUTOR_SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"                                env:"EXECUTOR_SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"                            env:"EXECUTOR_SERVER_SHUTDOWN_TIMEOUT"`
}

// FullAddress returns the bind address. An explicit Address wins over Host/Port.
func (c *ServerConfig) FullAddress() string {
	if c.Address != "" {
		return c.Address
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig contains persistence configuration for both drivers.
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"            validate:"oneof=postgres sqlite" env:"EXECUTOR_DB_DRIVER"`
	ConnString      string        `koanf:"conn_string"                                        env:"EXECUTOR_DB_CONN_STRING,DATABASE_URL"`
	Path            string        `koanf:"path"                                               env:"EXECUTOR_DB_PATH"`
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"min=0"                 env:"EXECUTOR_DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `koanf:"max_idle_conns"    validate:"min=0"                 env:"EXECUTOR_DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"                                  env:"EXECUTOR_DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"                                 env:"EXECUTOR_DB_CONN_MAX_IDLE_TIME"`
	BusyTimeout     time.Duration `koanf:"busy_timeout"                                       env:"EXECUTOR_DB_BUSY_TIMEOUT"`
	AutoMigrate     bool          `koanf:"auto_migrate"                                       env:"EXECUTOR_DB_AUTO_MIGRATE"`
}

// TemporalConfig contains Temporal workflow engine configuration.
type TemporalConfig struct {
	HostPort     string        `koanf:"host_port"      validate:"required" env:"EXECUTOR_TEMPORAL_HOST_PORT,TEMPORAL_URL"`
	Namespace    string        `koanf:"namespace"      validate:"required" env:"EXECUTOR_TEMPORAL_NAMESPACE"`
	TaskQueue    string        `koanf:"task_queue"     validate:"required" env:"EXECUTOR_TEMPORAL_TASK_QUEUE"`
	WorkflowType string        `koanf:"workflow_type"  validate:"required" env:"EXECUTOR_TEMPORAL_WORKFLOW_TYPE"`
	DialTimeout  time.Duration `koanf:"dial_timeout"                       env:"EXECUTOR_TEMPORAL_DIAL_TIMEOUT"`
}

// ReconcilerConfig controls the status reconciliation loop.
type ReconcilerConfig struct {
	Interval    time.Duration `koanf:"interval"     validate:"gt=0"  env:"EXECUTOR_RECONCILER_INTERVAL"`
	Concurrency int           `koanf:"concurrency"  validate:"min=1" env:"EXECUTOR_RECONCILER_CONCURRENCY"`
	CallTimeout time.Duration `koanf:"call_timeout" validate:"min=0" env:"EXECUTOR_RECONCILER_CALL_TIMEOUT"`
	LeaseTTL    time.Duration `koanf:"lease_ttl"    validate:"min=0" env:"EXECUTOR_RECONCILER_LEASE_TTL"`
}

// WorkerConfig controls the embedded Temporal worker.
type WorkerConfig struct {
	Enabled bool `koanf:"enabled" env:"EXECUTOR_WORKER_ENABLED"`
}

// RedisConfig enables the distributed reconciliation lease when Addr is set.
type RedisConfig struct {
	Addr     string `koanf:"addr"     env:"EXECUTOR_REDIS_ADDR"`
	Password string `koanf:"password" env:"EXECUTOR_REDIS_PASSWORD" sensitive:"true"`
	DB       int    `koanf:"db"       env:"EXECUTOR_REDIS_DB"       validate:"min=0"`
}

// MonitoringConfig controls the Prometheus metrics endpoint.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"EXECUTOR_MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"EXECUTOR_MONITORING_PATH"    validate:"omitempty,startswith=/"`
}

// RateLimitConfig throttles API requests per client IP. The counters live in
// Redis when redis.addr is set, in process memory otherwise.
type RateLimitConfig struct {
	Enabled bool          `koanf:"enabled" env:"EXECUTOR_RATE_LIMIT_ENABLED"`
	Limit   int64         `koanf:"limit"   env:"EXECUTOR_RATE_LIMIT_LIMIT"   validate:"min=0"`
	Period  time.Duration `koanf:"period"  env:"EXECUTOR_RATE_LIMIT_PERIOD"  validate:"min=0"`
	Prefix  string        `koanf:"prefix"  env:"EXECUTOR_RATE_LIMIT_PREFIX"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"EXECUTOR_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error disabled" env:"EXECUTOR_LOG_LEVEL"`
}

// Default returns the built-in configuration. The values mirror a single-node
// development setup: local Temporal, SQLite file store, embedded worker.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			Path:         "db.sqlite",
			MaxOpenConns: 0,
			MaxIdleConns: 0,
			BusyTimeout:  5 * time.Second,
			AutoMigrate:  true,
		},
		Temporal: TemporalConfig{
			HostPort:     "localhost:7233",
			Namespace:    "default",
			TaskQueue:    "repeat-task-queue",
			WorkflowType: "repeat_workflow",
			DialTimeout:  30 * time.Second,
		},
		Reconciler: ReconcilerConfig{
			Interval:    5 * time.Second,
			Concurrency: 8,
		},
		Worker: WorkerConfig{
			Enabled: true,
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		RateLimit: RateLimitConfig{
			Enabled: false,
			Limit:   100,
			Period:  time.Minute,
			Prefix:  "executor:ratelimit",
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
	}
}
