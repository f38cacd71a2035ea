package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"moneypal/internal/log"
)

// timeLayout is the persisted timestamp format. All timestamps are stored
// in UTC so lexicographic comparison in SQL matches chronological order.
const timeLayout = time.RFC3339

// Repository exposes the persistence contract: the expense ledger, the tag
// registry, the settings store and the analytics rollups. Callers never
// issue raw statements against the file.
type Repository struct {
	engine *Engine
}

// NewRepository migrates the database file and opens the engine on it.
func NewRepository(dbPath string) (*Repository, error) {
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	engine, err := OpenEngine(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	slog.Info("Repository initialized",
		log.FieldComponent, log.ComponentStorage,
		log.FieldDBPath, dbPath)
	return &Repository{engine: engine}, nil
}

func (r *Repository) Close() error {
	return r.engine.Close()
}

// Reset deletes all expenses, tags and links and zeroes the settings row,
// in one transaction.
func (r *Repository) Reset(ctx context.Context) error {
	err := r.engine.Transact(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM expense_tags`,
			`DELETE FROM tags`,
			`DELETE FROM expenses`,
			`UPDATE settings
			    SET monthly_income_cents = 0,
			        budgets_json = '{}',
			        savings_goal_cents = 0
			  WHERE id = 1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "All data reset",
		log.FieldComponent, log.ComponentStorage,
		log.FieldOperation, log.OpDelete)
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
