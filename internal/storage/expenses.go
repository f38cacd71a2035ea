package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"moneypal/internal/core"
	"moneypal/internal/log"
)

const defaultListLimit = 500

// tagNameSep joins tag names in the listing query. The unit separator
// cannot survive NormalizeTags, so it never collides with a stored name.
const tagNameSep = "\x1f"

// CreateExpense validates and persists a new expense together with its tag
// links, in one transaction. The returned entity carries the assigned id,
// the creation timestamp and the normalized tag set.
func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	e.OccurredAt = e.OccurredAt.UTC()
	e.CreatedAt = time.Now().UTC().Truncate(time.Second)
	e.Tags = core.NormalizeTags(e.Tags)

	err := r.engine.Transact(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO expenses (amount_cents, category, note, occurred_at, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			e.Amount.Cents, string(e.Category), e.Note,
			formatTime(e.OccurredAt), formatTime(e.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("expense id: %w", err)
		}
		e.ID = id
		return replaceExpenseTags(ctx, tx, id, e.Tags)
	})
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense created",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, e.ID,
		log.FieldAmountCents, e.Amount.Cents,
		log.FieldCategory, string(e.Category),
		log.FieldTagCount, len(e.Tags))

	sort.Strings(e.Tags)
	return e, nil
}

// GetExpense returns one expense with its sorted tag names, or
// core.ErrNotFound.
func (r *Repository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	var (
		e                     core.Expense
		category              string
		occurredAt, createdAt string
	)
	err := r.engine.ScanRow(ctx, `
		SELECT id, amount_cents, category, note, occurred_at, created_at
		  FROM expenses
		 WHERE id = ?`, []any{id},
		&e.ID, &e.Amount.Cents, &category, &e.Note, &occurredAt, &createdAt)
	if err == sql.ErrNoRows {
		return core.Expense{}, fmt.Errorf("%w: expense %d", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}

	e.Category = core.Category(category)
	e.OccurredAt = parseTime(occurredAt)
	e.CreatedAt = parseTime(createdAt)

	tags, err := r.expenseTagNames(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	e.Tags = tags
	return e, nil
}

// UpdateExpense applies a partial update. A non-nil patch.Tags replaces the
// full tag set; everything happens in one transaction so a concurrent reader
// never observes a half-updated expense.
func (r *Repository) UpdateExpense(ctx context.Context, id int64, patch core.ExpensePatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	err := r.engine.Transact(ctx, func(tx *sql.Tx) error {
		var exists int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM expenses WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: expense %d", core.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("check expense: %w", err)
		}

		var (
			sets []string
			args []any
		)
		if patch.AmountCents != nil {
			sets = append(sets, "amount_cents = ?")
			args = append(args, *patch.AmountCents)
		}
		if patch.Category != nil {
			sets = append(sets, "category = ?")
			args = append(args, string(*patch.Category))
		}
		if patch.Note != nil {
			sets = append(sets, "note = ?")
			args = append(args, *patch.Note)
		}
		if patch.OccurredAt != nil {
			sets = append(sets, "occurred_at = ?")
			args = append(args, formatTime(*patch.OccurredAt))
		}
		if len(sets) > 0 {
			args = append(args, id)
			query := "UPDATE expenses SET " + strings.Join(sets, ", ") + " WHERE id = ?"
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("update expense: %w", err)
			}
		}

		if patch.Tags != nil {
			if err := replaceExpenseTags(ctx, tx, id, *patch.Tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense updated",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, log.OpUpdate,
		log.FieldExpenseID, id)
	return nil
}

// DeleteExpense removes an expense; the cascade removes its tag links.
// Deleting an id that does not exist is always core.ErrNotFound, never a
// silent success.
func (r *Repository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.engine.Exec(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: expense %d", core.ErrNotFound, id)
	}

	slog.InfoContext(ctx, "Expense deleted",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, log.OpDelete,
		log.FieldExpenseID, id)
	return nil
}

// ListExpenses returns expenses matching the filter, ordered by
// occurred_at descending with ties broken by id descending. No match is an
// empty slice, not an error.
func (r *Repository) ListExpenses(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error) {
	var (
		where []string
		args  []any
	)

	if !filter.From.IsZero() {
		where = append(where, "e.occurred_at >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "e.occurred_at < ?")
		args = append(args, formatTime(filter.To))
	}
	if len(filter.Categories) > 0 {
		placeholders := strings.Repeat("?, ", len(filter.Categories))
		where = append(where, "e.category IN ("+placeholders[:len(placeholders)-2]+")")
		for _, c := range filter.Categories {
			args = append(args, string(c))
		}
	}
	if q := strings.TrimSpace(filter.NoteContains); q != "" {
		where = append(where, "LOWER(e.note) LIKE ?")
		args = append(args, "%"+strings.ToLower(q)+"%")
	}
	if tags := core.NormalizeTags(filter.Tags); len(tags) > 0 {
		placeholders := strings.Repeat("?, ", len(tags))
		where = append(where, `EXISTS (
			SELECT 1 FROM expense_tags et
			  JOIN tags t ON t.id = et.tag_id
			 WHERE et.expense_id = e.id AND t.name IN (`+placeholders[:len(placeholders)-2]+`))`)
		for _, name := range tags {
			args = append(args, name)
		}
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	rows, err := r.engine.Query(ctx, fmt.Sprintf(`
		SELECT e.id, e.amount_cents, e.category, e.note, e.occurred_at, e.created_at,
		       COALESCE(GROUP_CONCAT(t.name, CHAR(31)), '') AS tag_names
		  FROM expenses e
		  LEFT JOIN expense_tags et ON et.expense_id = e.id
		  LEFT JOIN tags t ON t.id = et.tag_id
		 %s
		 GROUP BY e.id
		 ORDER BY e.occurred_at DESC, e.id DESC
		 LIMIT ? OFFSET ?`, whereSQL), args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var (
			e                     core.Expense
			category              string
			occurredAt, createdAt string
			tagNames              string
		)
		if err := rows.Scan(&e.ID, &e.Amount.Cents, &category, &e.Note,
			&occurredAt, &createdAt, &tagNames); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Category = core.Category(category)
		e.OccurredAt = parseTime(occurredAt)
		e.CreatedAt = parseTime(createdAt)
		if tagNames != "" {
			e.Tags = strings.Split(tagNames, tagNameSep)
			sort.Strings(e.Tags)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	slog.DebugContext(ctx, "Expenses listed",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, log.OpList,
		"count", len(expenses))
	return expenses, nil
}
