package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres SQLSTATE codes the application reacts to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"

	// raised by the enforce_daily_training_hours trigger
	codeDailyHoursExceeded = "SKH01"
)

type txKey struct{}

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Queryer interface {
	sqlx.ExtContext
	sqlx.PreparerContext
}

// Transactor runs a function inside a single database transaction.
type Transactor struct {
	db        *sqlx.DB
	isolation sql.IsolationLevel
}

// NewTransactor builds a Transactor using the given isolation level.
func NewTransactor(db *sqlx.DB, isolation sql.IsolationLevel) *Transactor {
	return &Transactor{db: db, isolation: isolation}
}

// NewLockingTransactor builds a Transactor for code that serializes writers with advisory locks.
// It runs at READ COMMITTED so every statement issued after the lock is granted sees rows
// committed by the previous holder. A snapshot-per-transaction level would keep the snapshot
// taken by the lock statement and turn waiting writers into serialization failures.
func NewLockingTransactor(db *sqlx.DB) *Transactor {
	return NewTransactor(db, sql.LevelReadCommitted)
}

// WithinTx executes fn with a context carrying the transaction. Nested calls reuse the outer
// transaction. The transaction commits when fn returns nil and rolls back otherwise.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	tx, err := t.db.BeginTxx(ctx, &sql.TxOptions{Isolation: t.isolation})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Conn returns the transaction bound to ctx or falls back to db.
func Conn(ctx context.Context, db *sqlx.DB) Queryer {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// AdvisoryXactLock takes a transaction-scoped advisory lock derived from key. It must be called
// inside WithinTx; the lock is released at commit or rollback.
func AdvisoryXactLock(ctx context.Context, key string) error {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	if !ok {
		return errors.New("advisory lock requires an open transaction")
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", LockID(key)); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	return nil
}

// LockID maps an arbitrary string key onto the bigint space used by pg advisory locks.
func LockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}

// IsUniqueViolation reports duplicate key errors.
func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsForeignKeyViolation reports broken references.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

// IsCheckViolation reports rows rejected by a CHECK constraint.
func IsCheckViolation(err error) bool {
	return hasCode(err, codeCheckViolation)
}

// IsDailyHoursExceeded reports rows refused by the daily training hours trigger.
func IsDailyHoursExceeded(err error) bool {
	return hasCode(err, codeDailyHoursExceeded)
}

// IsRetryable reports transaction failures that a caller may safely retry.
func IsRetryable(err error) bool {
	return hasCode(err, codeSerializationFailure) || hasCode(err, codeDeadlockDetected)
}

func hasCode(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}
