package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"moneypal/internal/core"
	"moneypal/internal/log"
)

// The settings row is a schema-level singleton (id = 1, CHECK constraint)
// seeded by the initial migration. The upsert below heals files created
// before the seed existed; there is no get-then-create race to lose.
const ensureSettingsRow = `INSERT OR IGNORE INTO settings (id) VALUES (1)`

// GetSettings returns the current settings. The returned budget map carries
// every recognized category, zero-filled where no budget is stored.
func (r *Repository) GetSettings(ctx context.Context) (core.Settings, error) {
	if _, err := r.engine.Exec(ctx, ensureSettingsRow); err != nil {
		return core.Settings{}, fmt.Errorf("ensure settings row: %w", err)
	}

	var (
		s           core.Settings
		budgetsJSON string
	)
	err := r.engine.ScanRow(ctx, `
		SELECT monthly_income_cents, budgets_json, savings_goal_cents
		  FROM settings
		 WHERE id = 1`, nil,
		&s.MonthlyIncomeCents, &budgetsJSON, &s.SavingsGoalCents)
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}

	budgets, err := decodeBudgets(budgetsJSON)
	if err != nil {
		return core.Settings{}, err
	}
	s.Budgets = budgets
	return s, nil
}

// UpdateSettings applies a validated partial update in place. The singleton
// row is never duplicated and never deleted.
func (r *Repository) UpdateSettings(ctx context.Context, patch core.SettingsPatch) (core.Settings, error) {
	if err := patch.Validate(); err != nil {
		return core.Settings{}, err
	}

	var updated core.Settings
	err := r.engine.Transact(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, ensureSettingsRow); err != nil {
			return fmt.Errorf("ensure settings row: %w", err)
		}

		var (
			income, goal int64
			budgetsJSON  string
		)
		err := tx.QueryRowContext(ctx, `
			SELECT monthly_income_cents, budgets_json, savings_goal_cents
			  FROM settings
			 WHERE id = 1`).Scan(&income, &budgetsJSON, &goal)
		if err != nil {
			return fmt.Errorf("read settings: %w", err)
		}

		budgets, err := decodeBudgets(budgetsJSON)
		if err != nil {
			return err
		}

		if patch.MonthlyIncomeCents != nil {
			income = *patch.MonthlyIncomeCents
		}
		if patch.SavingsGoalCents != nil {
			goal = *patch.SavingsGoalCents
		}
		for c, v := range patch.Budgets {
			budgets[c] = v
		}

		encoded, err := encodeBudgets(budgets)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE settings
			   SET monthly_income_cents = ?,
			       budgets_json = ?,
			       savings_goal_cents = ?
			 WHERE id = 1`, income, encoded, goal); err != nil {
			return fmt.Errorf("update settings: %w", err)
		}

		updated = core.Settings{
			MonthlyIncomeCents: income,
			SavingsGoalCents:   goal,
			Budgets:            budgets,
		}
		return nil
	})
	if err != nil {
		return core.Settings{}, err
	}

	slog.InfoContext(ctx, "Settings updated",
		log.FieldComponent, log.ComponentSettings,
		log.FieldOperation, log.OpUpdate,
		"monthly_income_cents", updated.MonthlyIncomeCents,
		"savings_goal_cents", updated.SavingsGoalCents)
	return updated, nil
}

// decodeBudgets parses the stored JSON mapping and zero-fills every
// recognized category so callers always see a complete map.
func decodeBudgets(raw string) (map[core.Category]int64, error) {
	stored := map[string]int64{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, fmt.Errorf("%w: decode budgets: %v", core.ErrSchema, err)
		}
	}

	budgets := make(map[core.Category]int64, len(core.Categories()))
	for _, c := range core.Categories() {
		budgets[c] = stored[string(c)]
	}
	return budgets, nil
}

// encodeBudgets stores only nonzero budgets to keep the row compact.
func encodeBudgets(budgets map[core.Category]int64) (string, error) {
	out := map[string]int64{}
	for c, v := range budgets {
		if v != 0 {
			out[string(c)] = v
		}
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode budgets: %w", err)
	}
	return string(encoded), nil
}
