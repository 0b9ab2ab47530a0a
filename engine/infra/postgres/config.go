package postgres

import "time"

// Config holds PostgreSQL connection settings for the driver.
type Config struct {
	ConnString         string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	PingTimeout        time.Duration
	HealthCheckTimeout time.Duration
}
