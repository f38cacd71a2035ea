package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"moneypal/internal/core"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := OpenEngine(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestOpenEngineCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "engine.db")
	engine, err := OpenEngine(path)
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	defer engine.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}

func TestOpenEngineUnwritablePath(t *testing.T) {
	// A path whose parent is a regular file cannot be created.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	_, err := OpenEngine(filepath.Join(blocker, "sub", "engine.db"))
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestExecQueryRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Exec(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := engine.Exec(ctx, `INSERT INTO kv (k, v) VALUES (?, ?)`, "answer", 42); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var v int64
	if err := engine.ScanRow(ctx, `SELECT v FROM kv WHERE k = ?`, []any{"answer"}, &v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
}

func TestScanRowNoRowsPassesThrough(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Exec(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	var k string
	err := engine.ScanRow(ctx, `SELECT k FROM kv WHERE k = ?`, []any{"missing"}, &k)
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestTransactCommitsOnSuccess(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Exec(ctx, `CREATE TABLE n (v INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	err := engine.Transact(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO n (v) VALUES (1)`)
		return err
	})
	if err != nil {
		t.Fatalf("transact: %v", err)
	}

	var count int64
	if err := engine.ScanRow(ctx, `SELECT COUNT(*) FROM n`, nil, &count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected committed row, got %d", count)
	}
}

func TestTransactRollsBackOnError(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.Exec(ctx, `CREATE TABLE n (v INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	boom := errors.New("boom")
	err := engine.Transact(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO n (v) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to surface, got %v", err)
	}

	var count int64
	if err := engine.ScanRow(ctx, `SELECT COUNT(*) FROM n`, nil, &count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback, found %d rows", count)
	}
}

func TestIsBusyClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"locked text", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"table locked text", errors.New("database table is locked"), true},
		{"wrapped locked", fmt.Errorf("insert: %w", errors.New("database is locked")), true},
		{"other error", errors.New("no such table: kv"), false},
		{"no rows", sql.ErrNoRows, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isBusy(tc.err); got != tc.want {
				t.Fatalf("isBusy(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestWithRetryGivesUpAsStorageBusy(t *testing.T) {
	engine := newTestEngine(t)

	attempts := 0
	err := engine.withRetry(context.Background(), func() error {
		attempts++
		return errors.New("database is locked")
	})
	if !errors.Is(err, core.ErrStorageBusy) {
		t.Fatalf("expected ErrStorageBusy, got %v", err)
	}
	if attempts != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, attempts)
	}
}

func TestWithRetryRecoversAfterTransientBusy(t *testing.T) {
	engine := newTestEngine(t)

	attempts := 0
	err := engine.withRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	engine := newTestEngine(t)

	boom := errors.New("constraint violation")
	attempts := 0
	err := engine.withRetry(context.Background(), func() error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("non-busy errors must not retry, got %d attempts", attempts)
	}
}
