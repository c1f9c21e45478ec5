package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/mkrupp/library/internal/infra/logging"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Querier is satisfied by both *DB and *Tx, so read paths can run inside or
// outside a transaction.
type Querier = sqlx.ExtContext

// DB is the shared relational store of all services.
type DB struct {
	*sqlx.DB

	cfg     Config
	dialect goqu.DialectWrapper
	log     logging.Logger

	// modernc sqlite serializes writers on the file lock; taking the lock
	// in-process first avoids burning the busy timeout on our own goroutines.
	writeLock *sync.Mutex
}

// Open connects to the configured store and verifies the connection. When
// cfg.AutoMigrate is set the schema is created as well.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	log := logging.GetLogger("infra.database").With(
		logging.Group("db", "driver", cfg.Driver),
	)

	var (
		driverName string
		dsn        string
		dialect    string
		writeLock  *sync.Mutex
	)

	switch cfg.Driver {
	case DriverSQLite:
		if err := ensureDir(cfg.DSN); err != nil {
			return nil, err
		}

		driverName, dsn, dialect = "sqlite", sqliteDSN(cfg.DSN), "sqlite3"
		writeLock = new(sync.Mutex)
	case DriverPostgres:
		driverName, dsn, dialect = "pgx", cfg.DSN, "postgres"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	sqlDB, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping db: %w", err), sqlDB.Close())
	}

	db := &DB{
		DB:        sqlDB,
		cfg:       cfg,
		dialect:   goqu.Dialect(dialect),
		log:       log,
		writeLock: writeLock,
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return nil, errors.Join(err, sqlDB.Close())
		}
	}

	log.DebugContext(ctx, "database opened")

	return db, nil
}

// Builder returns the goqu dialect matching the driver.
func (db *DB) Builder() goqu.DialectWrapper {
	return db.dialect
}

// Driver returns the configured driver name.
func (db *DB) Driver() string {
	return db.cfg.Driver
}

// ForUpdate adds a row lock to ds where the dialect supports one. SQLite
// needs none since write transactions are serialized.
func (db *DB) ForUpdate(ds *goqu.SelectDataset) *goqu.SelectDataset {
	if db.cfg.Driver == DriverPostgres {
		return ds.ForUpdate(exp.Wait)
	}

	return ds
}

// InsertReturningID runs ds and returns the generated primary key.
func (db *DB) InsertReturningID(ctx context.Context, q Querier, ds *goqu.InsertDataset) (int64, error) {
	if db.cfg.Driver == DriverPostgres {
		query, args, err := ds.Returning("id").Prepared(true).ToSQL()
		if err != nil {
			return 0, fmt.Errorf("build insert: %w", err)
		}

		var id int64
		if err := sqlx.GetContext(ctx, q, &id, query, args...); err != nil {
			return 0, fmt.Errorf("insert: %w", err)
		}

		return id, nil
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	return id, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

func sqliteDSN(path string) string {
	params := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(WAL)",
		"_txlock=immediate",
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return path + sep + strings.Join(params, "&")
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	if path == "" || path == ":memory:" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}

	return nil
}
