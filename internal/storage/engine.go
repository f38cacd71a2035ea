// Package storage owns the SQLite-backed persistence layer: connection
// lifecycle and retry policy, schema migrations, and the repositories for
// expenses, tags, settings and analytics rollups.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"moneypal/internal/core"
	"moneypal/internal/log"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	// maxAttempts bounds the retry loop for statements hitting SQLITE_BUSY.
	maxAttempts = 5
	// retryBaseDelay is doubled on every attempt (80, 160, 320, 640 ms).
	retryBaseDelay = 80 * time.Millisecond

	busyTimeoutMs = 5000
)

// Engine manages the physical connection pool to the database file and
// wraps every statement with bounded retry on transient lock contention.
type Engine struct {
	db *sql.DB
}

// OpenEngine opens or creates the database file with WAL journaling, a busy
// timeout and foreign-key enforcement applied to every pooled connection.
func OpenEngine(path string) (*Engine, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create db directory: %v", core.ErrStorageUnavailable, err)
		}
	}

	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		fmt.Sprintf("&_pragma=busy_timeout(%d)", busyTimeoutMs) +
		"&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %v", core.ErrStorageUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %v", core.ErrStorageUnavailable, err)
	}

	return &Engine{db: db}, nil
}

func (e *Engine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Exec runs one mutating statement under the retry policy.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := e.withRetry(ctx, func() error {
		var err error
		res, err = e.db.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// Query runs one read statement under the retry policy. The caller owns
// the returned rows.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := e.withRetry(ctx, func() error {
		var err error
		rows, err = e.db.QueryContext(ctx, query, args...) //nolint:sqlclosecheck
		return err
	})
	return rows, err
}

// ScanRow runs a single-row query and scans it into dest, with the same
// retry policy as Exec. sql.ErrNoRows passes through untouched so callers
// can map it to their own not-found semantics.
func (e *Engine) ScanRow(ctx context.Context, query string, args []any, dest ...any) error {
	return e.withRetry(ctx, func() error {
		return e.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	})
}

// Transact runs fn inside one transaction: commit on normal return,
// rollback on any failure. The whole closure is retried when the busy
// condition surfaces at begin, inside fn, or at commit, so fn must be
// safe to run again after a rollback.
func (e *Engine) Transact(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return e.withRetry(ctx, func() error {
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback() // no-op once committed

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

// withRetry retries op with exponential backoff while it fails with a
// transient lock error, up to maxAttempts. Exhaustion surfaces as
// core.ErrStorageBusy; any other error returns unchanged.
func (e *Engine) withRetry(ctx context.Context, op func() error) error {
	delay := retryBaseDelay
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op()
		if err == nil || !isBusy(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		slog.DebugContext(ctx, "Database busy, retrying",
			log.FieldComponent, log.ComponentStorage,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%w: %d attempts exhausted: %v", core.ErrStorageBusy, maxAttempts, err)
}

// isBusy reports whether err is SQLite lock contention (SQLITE_BUSY or
// SQLITE_LOCKED), either as a driver error code or as message text from a
// layer that has already flattened the error.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code() & 0xff // strip extended result-code bits
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
