package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jmoiron/sqlx"
)

const retryJitterFactor = 0.3

// Tx is an open transaction handed to a WithinTx callback.
type Tx struct {
	*sqlx.Tx
}

// TxFunc is the body of a transaction. Returning an error rolls it back.
type TxFunc func(ctx context.Context, tx *Tx) error

// UnitOfWork runs a TxFunc atomically.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

var _ UnitOfWork = (*DB)(nil)

// WithinTx runs fn in a transaction and commits when it returns nil. If the
// store reports a lock timeout or serialization failure the whole transaction
// is retried with exponential backoff, up to Config.TxMaxAttempts times. Any
// other error, including domain errors returned by fn, fails fast.
func (db *DB) WithinTx(ctx context.Context, fn TxFunc) error {
	maxAttempts := max(db.cfg.TxMaxAttempts, 1)

	var err error

	for attempt := range maxAttempts {
		if attempt > 0 {
			delay := db.cfg.TxRetryBaseDelay * time.Duration(1<<(attempt-1))
			delay += time.Duration(rand.Float64() * float64(delay) * retryJitterFactor) //nolint:gosec

			db.log.WarnContext(ctx, "retrying transaction",
				"attempt", attempt+1,
				"delay", delay,
				"error", err,
			)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("retry tx: %w", errors.Join(ctx.Err(), err))
			}
		}

		err = db.runTx(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}

	return err
}

func (db *DB) runTx(ctx context.Context, fn TxFunc) (err error) {
	if db.writeLock != nil {
		db.writeLock.Lock()
		defer db.writeLock.Unlock()
	}

	sqlTx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}

		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
		}
	}()

	if err = fn(ctx, &Tx{Tx: sqlTx}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
