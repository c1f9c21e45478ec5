package database

import "time"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and tunes the shared relational store.
type Config struct {
	// Driver is either "sqlite" or "postgres"
	Driver string `env:"DRIVER" default:"sqlite"`

	// DSN is a file path for sqlite or a connection URL for postgres
	DSN string `env:"DSN" default:"var/storage/library.db"`

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    default:"10"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" default:"5m"`

	// AutoMigrate creates missing tables and indexes on startup
	AutoMigrate bool `env:"AUTO_MIGRATE" default:"true"`

	// TxMaxAttempts bounds how often a transaction is re-run after a
	// lock timeout or serialization failure
	TxMaxAttempts    int           `env:"TX_MAX_ATTEMPTS"     default:"5"`
	TxRetryBaseDelay time.Duration `env:"TX_RETRY_BASE_DELAY" default:"10ms"`
}
